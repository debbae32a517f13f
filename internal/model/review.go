package model

// Review is one entry in the home feed's review list.
type Review struct {
	ID     int64
	Author string
	Rating int // 1–5
	Text   string
}

// ReviewDraft is the unsaved review being composed on the home screen.
type ReviewDraft struct {
	Rating int // 0 = unset
	Text   string
}

// Route is a named screen plus its opaque parameters.
type Route struct {
	Name   string
	Params map[string]any
}
