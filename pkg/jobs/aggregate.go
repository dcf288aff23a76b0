package jobs

import "sort"

// Aggregate merges task-level rows into one logical Job per job_id.
//
// Backends can report the same job more than once (one row per task, or
// duplicate reports when a query decomposes into multiple backend calls).
// The first report of a job id establishes the job-level fields; task
// lists from subsequent reports are merged by task_id. Within one task
// id the report with the longer event stream wins, since event streams
// are append-only and never shrink.
func Aggregate(in []Job) []Job {
	byID := make(map[string]*Job, len(in))
	order := make([]string, 0, len(in))

	for _, j := range in {
		existing, ok := byID[j.JobID]
		if !ok {
			copied := j
			copied.Tasks = append([]Task(nil), j.Tasks...)
			byID[j.JobID] = &copied
			order = append(order, j.JobID)
			continue
		}
		mergeTasks(existing, j.Tasks)
	}

	out := make([]Job, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func mergeTasks(dst *Job, tasks []Task) {
	for _, t := range tasks {
		idx := -1
		for i, have := range dst.Tasks {
			if have.TaskID == t.TaskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			dst.Tasks = append(dst.Tasks, t)
			continue
		}
		if len(t.Events) > len(dst.Tasks[idx].Events) {
			dst.Tasks[idx].Events = t.Events
		}
		if len(t.Attributes) > 0 {
			if dst.Tasks[idx].Attributes == nil {
				dst.Tasks[idx].Attributes = make(map[string]string, len(t.Attributes))
			}
			for k, v := range t.Attributes {
				dst.Tasks[idx].Attributes[k] = v
			}
		}
		if t.Degraded {
			dst.Tasks[idx].Degraded = true
		}
	}
}

// Sort orders jobs by create time descending, most recent first.
// Ties break by job id ascending so a fixed snapshot always renders in
// the same order.
func Sort(js []Job) {
	sort.SliceStable(js, func(i, k int) bool {
		ti, tk := js[i].CreateTime, js[k].CreateTime
		if !ti.Equal(tk) {
			return ti.After(tk)
		}
		return js[i].JobID < js[k].JobID
	})
}
