package store

import (
	"github.com/boboyejj/XY-Positioner-GUI/internal/debug"
	"github.com/boboyejj/XY-Positioner-GUI/internal/logic/scan"
)

// Recorder writes scan events to the database. Write failures are logged
// and never stop the scan.
type Recorder struct {
	db *DB
}

// NewRecorder returns an observer recording into db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// Observe implements scan.Observer.
func (r *Recorder) Observe(e scan.Event) {
	var err error
	switch e.Type {
	case scan.EventStarted:
		var p scan.Params
		if e.Params != nil {
			p = *e.Params
		}
		err = r.db.CreateSession(e.SessionID, e.Time, e.Rows, e.Cols, p)
	case scan.EventMeasured:
		err = r.db.RecordMeasurement(Measurement{
			SessionID: e.SessionID,
			Kind:      e.Kind,
			Index:     e.Index,
			Cell:      e.Cell,
			Value:     e.Value,
			Taken:     e.Time,
		})
	case scan.EventState:
		err = r.db.UpdateState(e.SessionID, e.Time, e.State, e.Err)
	}
	if err != nil {
		debug.Error(err)
	}
}
