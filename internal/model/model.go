package model

import "time"

type NodeKind string

const (
	NodeKindBook    NodeKind = "book"
	NodeKindPart    NodeKind = "part"
	NodeKindChapter NodeKind = "chapter"
	NodeKindScene   NodeKind = "scene"
)

func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindBook, NodeKindPart, NodeKindChapter, NodeKindScene:
		return true
	default:
		return false
	}
}

type NodeStatus string

const (
	StatusDraft   NodeStatus = "draft"
	StatusRevised NodeStatus = "revised"
	StatusFinal   NodeStatus = "final"
	StatusTrash   NodeStatus = "trash"
)

func (s NodeStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusRevised, StatusFinal, StatusTrash:
		return true
	default:
		return false
	}
}

// ManuscriptNode is the lightweight tree entry for a structural unit.
// JSON field names match the on-disk manuscript.json written by earlier releases.
type ManuscriptNode struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Kind        NodeKind   `json:"node_type"`
	Children    []string   `json:"children"`
	Status      NodeStatus `json:"status"`
	Mood        *string    `json:"mood,omitempty"`
	PointOfView *string    `json:"pov,omitempty"`
	WordCount   int        `json:"word_count"`
}

type ManuscriptStructure struct {
	Root  string                     `json:"root"`
	Nodes map[string]*ManuscriptNode `json:"nodes"`
	Order []string                   `json:"order"`
}

func (st *ManuscriptStructure) FindNode(id string) (*ManuscriptNode, bool) {
	if st == nil || st.Nodes == nil {
		return nil, false
	}
	n, ok := st.Nodes[id]
	if !ok || n == nil {
		return nil, false
	}
	return n, true
}

// ParentOf returns the id of the node whose children list contains id.
func (st *ManuscriptStructure) ParentOf(id string) (string, bool) {
	if st == nil {
		return "", false
	}
	for pid, n := range st.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if c == id {
				return pid, true
			}
		}
	}
	return "", false
}

// ChapterIDs returns chapter node ids in creation order.
func (st *ManuscriptStructure) ChapterIDs() []string {
	if st == nil {
		return nil
	}
	out := make([]string, 0, len(st.Order))
	for _, id := range st.Order {
		if n, ok := st.FindNode(id); ok && n.Kind == NodeKindChapter {
			out = append(out, id)
		}
	}
	return out
}

func (st *ManuscriptStructure) TotalWordCount() int {
	if st == nil {
		return 0
	}
	total := 0
	for _, n := range st.Nodes {
		if n != nil {
			total += n.WordCount
		}
	}
	return total
}

// Clone returns a deep copy so callers can read a structure without holding the owner's lock.
func (st *ManuscriptStructure) Clone() *ManuscriptStructure {
	if st == nil {
		return nil
	}
	out := &ManuscriptStructure{
		Root:  st.Root,
		Nodes: make(map[string]*ManuscriptNode, len(st.Nodes)),
		Order: append([]string{}, st.Order...),
	}
	for id, n := range st.Nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.Children = append([]string{}, n.Children...)
		cp.Mood = cloneStr(n.Mood)
		cp.PointOfView = cloneStr(n.PointOfView)
		out.Nodes[id] = &cp
	}
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type ChapterContent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Status      NodeStatus `json:"status"`
	Mood        *string    `json:"mood,omitempty"`
	PointOfView *string    `json:"pov,omitempty"`
	WordCount   int        `json:"wordCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	ModifiedAt  time.Time  `json:"modifiedAt"`
}

type PalimpsestFragment struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapterId"`
	Text      string    `json:"text"`
	Position  int       `json:"position"`
	DeletedAt time.Time `json:"deletedAt"`
}

type SessionState struct {
	ActiveChapterID  string    `json:"activeChapterId,omitempty"`
	IsDirty          bool      `json:"isDirty"`
	SessionWordCount int       `json:"sessionWordCount"`
	SessionStartTime time.Time `json:"sessionStartTime"`
}

type ProjectMetadata struct {
	Title           string    `json:"title" toml:"title"`
	Author          string    `json:"author" toml:"author"`
	Genre           string    `json:"genre" toml:"genre"`
	WordCountTarget *int      `json:"wordCountTarget,omitempty" toml:"word_count_target,omitempty"`
	Deadline        *string   `json:"deadline,omitempty" toml:"deadline,omitempty"`
	CreatedAt       time.Time `json:"createdAt" toml:"created_at"`
	ModifiedAt      time.Time `json:"modifiedAt" toml:"modified_at"`
}

type Project struct {
	Path      string               `json:"path"`
	Metadata  ProjectMetadata      `json:"metadata"`
	Structure *ManuscriptStructure `json:"structure"`
}

type SearchMatch struct {
	Line  int    `json:"line"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type SearchResult struct {
	ChapterID    string        `json:"chapterId"`
	ChapterTitle string        `json:"chapterTitle"`
	Matches      []SearchMatch `json:"matches"`
}

type Snapshot struct {
	Name      string    `json:"name"`
	File      string    `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
}

// WritingDay is one row of the writing heatmap.
type WritingDay struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Words int    `json:"words"`
}

type WritingStats struct {
	Days       []WritingDay `json:"days"`
	Streak     int          `json:"streak"`
	ActiveDays int          `json:"activeDays"`
	Total      int          `json:"total"`
}
