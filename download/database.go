package download

import (
	"github.com/cenkalti/fetch/internal/resumer/boltdbresumer"
)

var tasksBucket = []byte("tasks")

// boltDatabase stores records in a Bolt database file.
type boltDatabase struct {
	resumer *boltdbresumer.Resumer
}

var _ Database = (*boltDatabase)(nil)

func openBoltDatabase(path string) (*boltDatabase, error) {
	res, err := boltdbresumer.Open(path, tasksBucket)
	if err != nil {
		return nil, err
	}
	return &boltDatabase{resumer: res}, nil
}

func (d *boltDatabase) Close() error {
	return d.resumer.Close()
}

func (d *boltDatabase) EnumerateTasks() ([]Record, error) {
	specs, err := d.resumer.Enumerate()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(specs))
	for _, spec := range specs {
		rec, err := specToRecord(spec)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (d *boltDatabase) GetTask(id ID) (Record, bool, error) {
	spec, err := d.resumer.Read(string(id))
	if err != nil || spec == nil {
		return Record{}, false, err
	}
	rec, err := specToRecord(spec)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (d *boltDatabase) AddOrUpdate(rec Record) error {
	return d.resumer.Write(string(rec.ID), &boltdbresumer.Spec{
		ID:          string(rec.ID),
		State:       rec.State.String(),
		URL:         rec.URL,
		Dest:        rec.Path,
		Length:      rec.Length,
		Position:    rec.Position,
		Hash:        rec.Hash,
		AddedAt:     rec.CreatedAt,
		CompletedAt: rec.CompletedAt,
	})
}

func (d *boltDatabase) Remove(id ID) error {
	return d.resumer.Remove(string(id))
}

func specToRecord(spec *boltdbresumer.Spec) (Record, error) {
	state, err := ParseState(spec.State)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:          ID(spec.ID),
		State:       state,
		CreatedAt:   spec.AddedAt,
		URL:         spec.URL,
		Path:        spec.Dest,
		Length:      spec.Length,
		Position:    spec.Position,
		Hash:        spec.Hash,
		CompletedAt: spec.CompletedAt,
	}, nil
}
