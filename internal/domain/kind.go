package domain

// Kind identifies one of the three catalog entity collections
type Kind string

// catalog entity kinds
const (
	KindTopic   Kind = "topic"
	KindContent Kind = "content"
	KindLesson  Kind = "lesson"
)

func (k Kind) String() string {
	return string(k)
}

// Kinds in hydration order, parents first
var Kinds = []Kind{KindTopic, KindContent, KindLesson}

// Snapshot authoritative remote view of the whole catalog
type Snapshot struct {
	Topics   []Topic   `json:"topics"`
	Contents []Content `json:"contents"`
	Lessons  []Lesson  `json:"lessons"`
}
