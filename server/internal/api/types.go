package api

import "strconv"

// StatusResponse is the payload for GET /status.
type StatusResponse struct {
	Status     string   `json:"status"` // "online"
	Project    string   `json:"project"`
	Owner      string   `json:"owner"`
	Retention  string   `json:"retention"`
	TotalLogs  int      `json:"total_logs"`
	LastEvents []string `json:"last_events"` // newest first
}

// RunResponse is the payload for a successful GET /run.
type RunResponse struct {
	Status     string `json:"status"` // "success"
	Entry      string `json:"entry"`
	DeletedOld int64  `json:"deleted_old"`
	SweptKeys  int64  `json:"swept_keys"`
	SweepError string `json:"sweep_error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status  string `json:"status"` // "error"
	Message string `json:"message"`
}

// healthResponse is the payload for GET /healthz.
type healthResponse struct {
	Status string `json:"status"`
}

// page is the presentational form shared by every payload.
type page struct {
	Title  string
	Status string
	Fields []field
	Events []string
}

type field struct {
	Name  string
	Value string
}

// pager is implemented by payloads that can be rendered as HTML.
type pager interface {
	page() page
}

func (s StatusResponse) page() page {
	return page{
		Title:  s.Project,
		Status: s.Status,
		Fields: []field{
			{"Owner", s.Owner},
			{"Retention", s.Retention},
			{"Total logs", strconv.Itoa(s.TotalLogs)},
		},
		Events: s.LastEvents,
	}
}

func (r RunResponse) page() page {
	p := page{
		Title:  "Probe run",
		Status: r.Status,
		Fields: []field{
			{"Entry", r.Entry},
			{"Deleted old", strconv.FormatInt(r.DeletedOld, 10)},
			{"Swept keys", strconv.FormatInt(r.SweptKeys, 10)},
		},
	}
	if r.SweepError != "" {
		p.Fields = append(p.Fields, field{"Sweep error", r.SweepError})
	}
	return p
}

func (e ErrorResponse) page() page {
	return page{
		Title:  "Error",
		Status: e.Status,
		Fields: []field{{"Message", e.Message}},
	}
}

func (h healthResponse) page() page {
	return page{Title: "Health", Status: h.Status}
}
