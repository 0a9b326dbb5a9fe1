package model

import "time"

// ActiveAgent is an in-memory record of a running dispatch. It exists
// only for the lifetime of the dispatch.
type ActiveAgent struct {
	DispatchID string    `json:"dispatchId"`
	Role       string    `json:"role"`
	TaskSlug   string    `json:"taskSlug"`
	StartedAt  time.Time `json:"startedAt"`
	Cancel     func()    `json:"-"`
}
