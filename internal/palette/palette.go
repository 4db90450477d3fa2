package palette

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

var ErrDuplicateCommand = errors.New("duplicate command id")

type Command struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Keys     string `json:"keys,omitempty"`
}

type Match struct {
	Command Command `json:"command"`
	Score   int     `json:"score"`
}

// An exact label match outranks any partial one, which tops out at
// scoreLabel+scoreLabelPrefix+scoreCategory.
const (
	scoreExact       = 10
	scoreLabel       = 10
	scoreLabelPrefix = 5
	scoreCategory    = 3
	scoreSubsequence = 1
)

// Registry keeps commands in registration order.
type Registry struct {
	mu   sync.RWMutex
	cmds []Command
	byID map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]int{}}
}

func (r *Registry) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("command %q: empty id", c.Label)
		}
		if _, ok := r.byID[c.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, c.ID)
		}
		r.byID[c.ID] = len(r.cmds)
		r.cmds = append(r.cmds, c)
	}
	return nil
}

func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Command(nil), r.cmds...)
}

func (r *Registry) Lookup(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Command{}, false
	}
	return r.cmds[i], true
}

// Match ranks commands against query. An empty query returns every command, unscored, in
// registration order.
func (r *Registry) Match(query string) []Match {
	return Rank(r.Commands(), query)
}

// Rank scores cmds against query and drops the ones scoring zero. Equal scores keep input order.
func Rank(cmds []Command, query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Match, 0, len(cmds))
	if q == "" {
		for _, c := range cmds {
			out = append(out, Match{Command: c})
		}
		return out
	}

	labels := make([]string, len(cmds))
	for i, c := range cmds {
		labels[i] = strings.ToLower(c.Label)
	}
	subseq := map[int]bool{}
	for _, m := range fuzzy.Find(q, labels) {
		subseq[m.Index] = true
	}

	for i, c := range cmds {
		score := 0
		if strings.Contains(labels[i], q) {
			score += scoreLabel
			if strings.HasPrefix(labels[i], q) {
				score += scoreLabelPrefix
			}
			if labels[i] == q {
				score += scoreExact
			}
		}
		if strings.Contains(strings.ToLower(c.Category), q) {
			score += scoreCategory
		}
		if score == 0 && subseq[i] {
			score = scoreSubsequence
		}
		if score > 0 {
			out = append(out, Match{Command: c, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
