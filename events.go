package arbor

// EventType tags an index lifecycle signal.
type EventType uint8

const (
	// EventReadStarted fires before a file's content is read for parsing.
	EventReadStarted EventType = iota + 1
	// EventCacheHit fires when a refresh finds the file unchanged and keeps
	// the existing File.
	EventCacheHit
	// EventParsed fires after a file has been walked into a new File.
	EventParsed
	// EventError fires when reading or parsing a file fails. The file is
	// recorded as failed and stays absent from query results.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReadStarted:
		return "read-started"
	case EventCacheHit:
		return "cache-hit"
	case EventParsed:
		return "parsed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a lifecycle signal emitted to the observer. File is set for
// cache-hit and parsed events, Err for error events.
type Event struct {
	Type     EventType
	Filename string
	File     *File
	Err      error
}

func (ix *Index) emit(ev Event) {
	if ix.observer != nil {
		ix.observer(ev)
	}
}
