package drawing

import "time"

// Command kinds stored in a room's drawing log
const (
	KindStroke = "stroke"
	KindClear  = "clear"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Payload of a stroke: the full path plus brush settings
type StrokeData struct {
	Path  []Point `json:"path"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// A single unit of drawing history. Immutable once appended to a room's log;
// replayed in stored order to late joiners via load-drawing.
type Command struct {
	Type      string     `json:"type"`
	Data      StrokeData `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	UserID    string     `json:"userId"`
}

// Builds a stroke command from a completed draw-end
func NewStroke(userID string, path []Point, color string, width float64, at time.Time) Command {
	return Command{
		Type: KindStroke,
		Data: StrokeData{
			Path:  path,
			Color: color,
			Width: width,
		},
		Timestamp: at,
		UserID:    userID,
	}
}
