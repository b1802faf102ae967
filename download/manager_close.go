package download

import (
	"context"
	"errors"
)

// Close stops accepting new tasks, stops the workers and waits for them to return.
// Downloads in progress are interrupted and stay in the database to be resumed on next start.
func (m *Manager) Close() error {
	m.m.Lock()
	if m.closed {
		m.m.Unlock()
		return nil
	}
	m.closed = true
	m.m.Unlock()

	m.queue.Close()
	m.cancel()

	var errs []error
	err := withoutCancellation(m.workers.Wait())
	if err != nil {
		errs = append(errs, err)
	}

	if m.rpc != nil {
		err = m.rpc.Stop(m.config.RPCShutdownTimeout)
		if err != nil {
			m.log.Errorln("cannot stop RPC server:", err.Error())
		}
	}
	m.metrics.Close()
	m.client.CloseIdleConnections()
	if m.closeDB != nil {
		err = m.closeDB()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withoutCancellation removes the errors caused by cancellation of the shared context.
func withoutCancellation(err error) error {
	if err == nil {
		return nil
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		var errs []error
		for _, e := range u.Unwrap() {
			if e = withoutCancellation(e); e != nil {
				errs = append(errs, e)
			}
		}
		return errors.Join(errs...)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
