// Package assistant is the planning helper behind the chat box: an ordered
// keyword rule table with a fallback answer, plus static idea and
// posting-time tables. It is deterministic; nothing here is learned.
package assistant

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"contentcal/internal/model"
)

// Rule answers any input containing Keyword (after lower-casing).
type Rule struct {
	Keyword  string `json:"keyword" yaml:"keyword"`
	Response string `json:"response" yaml:"response"`
}

// DefaultRules are checked in order; the first contained keyword wins.
var DefaultRules = []Rule{
	{"content", `Here are some content ideas based on your audience: "5 Tips for Productivity", "Behind the Scenes Look", "User Success Stories", "Industry Trends Update"`},
	{"schedule", "Best posting times are: Social Media (2-4 PM), Email (9-11 AM), Blog (7-9 PM). I recommend scheduling posts when your audience is most active."},
	{"analytics", "Your content performs best on weekdays. Posts with questions get 34% more engagement. Consider adding more video content for higher reach."},
	{"help", "I can help with: \n• Content idea generation\n• Optimal posting times\n• Performance insights\n• Content optimization tips\n• Platform-specific advice"},
	{"time", "For maximum engagement, post social content between 2-4 PM, send emails 9-11 AM, and publish blog posts 7-9 PM when your audience is most active."},
	{"ideas", "Here are trending content ideas: How-to tutorials, Customer spotlights, Industry news commentary, Quick tips, Behind-the-scenes content, Q&A sessions, and seasonal topics."},
}

const (
	DefaultFallback = "I'd be happy to help! I can assist with content ideas, scheduling optimization, analytics insights, and content strategy. What specific area would you like to focus on?"
	Greeting        = "Hi! I'm your AI assistant. I can help you create content ideas, optimize posting times, and provide insights. What would you like to work on today?"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type Engine struct {
	rules    []Rule
	fallback string
	now      func() time.Time
}

// New builds an engine over rules; nil rules means DefaultRules and an
// empty fallback means DefaultFallback. Rules with an empty keyword are
// ignored.
func New(rules []Rule, fallback string) *Engine {
	if rules == nil {
		rules = DefaultRules
	}
	e := &Engine{fallback: fallback, now: time.Now}
	if e.fallback == "" {
		e.fallback = DefaultFallback
	}
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		e.rules = append(e.rules, Rule{Keyword: kw, Response: r.Response})
	}
	return e
}

// Respond returns the response of the first rule whose keyword occurs in
// input, or the fallback.
func (e *Engine) Respond(input string) string {
	in := strings.ToLower(input)
	for _, r := range e.rules {
		if strings.Contains(in, r.Keyword) {
			return r.Response
		}
	}
	return e.fallback
}

// Reply wraps Respond in a chat message. Blank input yields ok == false.
func (e *Engine) Reply(input string) (msg Message, ok bool) {
	if strings.TrimSpace(input) == "" {
		return Message{}, false
	}
	return Message{
		ID:        uuid.NewString(),
		Content:   e.Respond(input),
		Sender:    SenderAssistant,
		Timestamp: e.now().UTC(),
	}, true
}

// Suggestion is a content idea offered to the user.
type Suggestion struct {
	ID         int            `json:"id"`
	Title      string         `json:"title"`
	Platform   model.Platform `json:"platform"`
	Confidence int            `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// Candidate turns the suggestion into a draft scheduled at when.
func (s Suggestion) Candidate(when time.Time) model.CandidateItem {
	return model.CandidateItem{
		Title:         s.Title,
		Description:   s.Reasoning,
		Platform:      s.Platform,
		Status:        model.StatusDraft,
		ScheduledDate: when,
	}
}

var topics = []string{
	"10 Tips for Remote Work Productivity",
	"Behind the Scenes: Our Team Culture",
	"Customer Success Story Spotlight",
	"Industry Trends You Should Know",
	"Quick Tutorial: Getting Started",
	"Weekly Roundup: Top Insights",
	"Q&A Session with Our Experts",
	"Product Feature Deep Dive",
	"Community Highlights",
	"Seasonal Content Ideas",
}

var reasons = []string{
	"High engagement potential based on similar content",
	"Trending topic in your industry",
	"Performs well with your audience",
	"Seasonal relevance detected",
	"Competitor analysis shows opportunity",
}

var suggestionPlatforms = []model.Platform{model.PlatformSocial, model.PlatformEmail, model.PlatformBlog}

const suggestionCount = 5

// Suggestions returns the first five topics with cycling platforms and a
// fixed, descending confidence.
func Suggestions() []Suggestion {
	out := make([]Suggestion, 0, suggestionCount)
	for i, t := range topics[:suggestionCount] {
		out = append(out, Suggestion{
			ID:         i,
			Title:      t,
			Platform:   suggestionPlatforms[i%len(suggestionPlatforms)],
			Confidence: 95 - 3*i,
			Reasoning:  reasons[i%len(reasons)],
		})
	}
	return out
}

// SuggestionByID looks a suggestion up by its index.
func SuggestionByID(id int) (Suggestion, bool) {
	all := Suggestions()
	if id < 0 || id >= len(all) {
		return Suggestion{}, false
	}
	return all[id], true
}

type PostingTime struct {
	Platform   string `json:"platform"`
	Window     string `json:"time"`
	Engagement string `json:"engagement"`
	Reason     string `json:"reason"`
}

func OptimalTimes() []PostingTime {
	return []PostingTime{
		{"Social Media", "2:00 PM - 4:00 PM", "+23%", "Peak activity hours"},
		{"Email", "9:00 AM - 11:00 AM", "+18%", "Morning check routine"},
		{"Blog", "7:00 PM - 9:00 PM", "+15%", "Evening reading time"},
	}
}
