package urldownloader

// Job is a single byte range request.
type Job struct {
	Begin  int64
	Length int64
}

// End returns the offset after the last byte of the job.
func (j Job) End() int64 {
	return j.Begin + j.Length
}

// CreateJobs splits the bytes between position and length into jobs of chunkSize.
// The last job is shorter if the remaining byte count is not a multiple of chunkSize.
func CreateJobs(position, length, chunkSize int64) []Job {
	if chunkSize <= 0 {
		panic("chunk size must be positive")
	}
	remaining := length - position
	if remaining <= 0 {
		return nil
	}
	full := remaining / chunkSize
	last := remaining % chunkSize
	jobs := make([]Job, 0, full+1)
	for i := int64(0); i < full; i++ {
		jobs = append(jobs, Job{Begin: position, Length: chunkSize})
		position += chunkSize
	}
	if last > 0 {
		jobs = append(jobs, Job{Begin: position, Length: last})
	}
	return jobs
}
