package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okvl/guessquote-bot/internal/game"
	"github.com/okvl/guessquote-bot/internal/msgcat"
	"github.com/okvl/guessquote-bot/internal/race"
	"github.com/okvl/guessquote-bot/internal/relay"
	"github.com/okvl/guessquote-bot/internal/store"
)

type fakeGames struct {
	mu       sync.Mutex
	startErr error
	starts   int
	offers   []game.GuessEvent
	consume  bool
}

func (f *fakeGames) Start(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeGames) Offer(_ string, ev game.GuessEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, ev)
	return f.consume
}

type fakeRolls struct {
	mu       sync.Mutex
	observed int
}

func (f *fakeRolls) Observe(context.Context, string) {
	f.mu.Lock()
	f.observed++
	f.mu.Unlock()
}

func (f *fakeRolls) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observed
}

type fakeBoard struct {
	recs []store.ScoreRecord
	err  error
}

func (f *fakeBoard) TopScores(context.Context, int) ([]store.ScoreRecord, error) {
	return f.recs, f.err
}

type fakeArchive struct {
	mu   sync.Mutex
	rows []*store.ArchivedMessage
}

func (f *fakeArchive) InsertMessage(_ context.Context, row *store.ArchivedMessage) error {
	f.mu.Lock()
	f.rows = append(f.rows, row)
	f.mu.Unlock()
	return nil
}

type fakeCalendar struct {
	races []race.Race
}

func (f *fakeCalendar) SeasonRaces(context.Context, int) ([]race.Race, error) {
	return f.races, nil
}

type chanSender struct {
	ch chan string
}

func (c *chanSender) SendText(_ context.Context, _ string, message string) error {
	c.ch <- message
	return nil
}

func (c *chanSender) wait(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-c.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return ""
	}
}

type fixture struct {
	bot      *Bot
	games    *fakeGames
	rolls    *fakeRolls
	archive  *fakeArchive
	sender   *chanSender
	board    *fakeBoard
	calendar *fakeCalendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	f := &fixture{
		games:    &fakeGames{},
		rolls:    &fakeRolls{},
		archive:  &fakeArchive{},
		sender:   &chanSender{ch: make(chan string, 8)},
		board:    &fakeBoard{},
		calendar: &fakeCalendar{},
	}
	f.bot = New("!", "chan-1", f.sender, cat, f.games, f.rolls, f.board, f.archive, f.calendar)
	return f
}

func inbound(content string) *relay.Message {
	return &relay.Message{
		ID:       100,
		Channel:  "chan-1",
		UserID:   1,
		UserName: "tester",
		Content:  content,
		SentAt:   time.Now(),
	}
}

func TestHandleMessageIgnoresOtherChannels(t *testing.T) {
	f := newFixture(t)
	msg := inbound("hello")
	msg.Channel = "elsewhere"
	f.bot.HandleMessage(context.Background(), msg)

	if len(f.archive.rows) != 0 || len(f.games.offers) != 0 || f.rolls.count() != 0 {
		t.Fatal("messages from other channels should be dropped")
	}
}

func TestHandleMessageArchivesAndFeedsRoll(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleMessage(context.Background(), inbound("just chatting"))

	if len(f.archive.rows) != 1 || f.archive.rows[0].MessageID != 100 {
		t.Fatalf("message not archived: %+v", f.archive.rows)
	}
	if len(f.games.offers) != 1 {
		t.Fatalf("message not offered to the game: %d", len(f.games.offers))
	}
	if f.rolls.count() != 1 {
		t.Fatalf("unconsumed message should feed the roll counter, got %d", f.rolls.count())
	}
}

func TestConsumedGuessSkipsRollCounter(t *testing.T) {
	f := newFixture(t)
	f.games.consume = true
	f.bot.HandleMessage(context.Background(), inbound("alice!"))

	if f.rolls.count() != 0 {
		t.Fatal("a consumed guess must not advance the roll counter")
	}
}

func TestGuessCommandStartsRound(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleMessage(context.Background(), inbound("!guess"))

	deadline := time.Now().Add(time.Second)
	for {
		f.games.mu.Lock()
		starts := f.games.starts
		f.games.mu.Unlock()
		if starts == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("guess command never started a round")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if f.rolls.count() != 0 {
		t.Fatal("commands must not advance the roll counter")
	}
}

func TestGuessCommandReportsBusyAndEmpty(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"round active", game.ErrRoundActive, "already running"},
		{"no quotes", store.ErrNoQuote, "nothing to guess"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.games.startErr = tc.err
			f.bot.HandleMessage(context.Background(), inbound("!guess"))
			if reply := f.sender.wait(t); !strings.Contains(reply, tc.want) {
				t.Fatalf("reply %q missing %q", reply, tc.want)
			}
		})
	}
}

func TestScoreboardCommand(t *testing.T) {
	f := newFixture(t)
	f.board.recs = []store.ScoreRecord{
		{UserID: 1, Name: "alpha", Points: 200, CorrectCount: 4, TotalAttempts: 5, CurrentStreak: 2, BestStreak: 3},
		{UserID: 2, Name: "beta", Points: 90, CorrectCount: 1, TotalAttempts: 4, BestStreak: 1},
	}
	f.bot.HandleMessage(context.Background(), inbound("!scoreboard"))

	reply := f.sender.wait(t)
	if !strings.Contains(reply, "1. alpha") || !strings.Contains(reply, "2. beta") {
		t.Fatalf("scoreboard rows missing or misordered:\n%s", reply)
	}
	if !strings.Contains(reply, "80% accuracy") {
		t.Fatalf("accuracy not rendered:\n%s", reply)
	}
}

func TestScoreboardEmpty(t *testing.T) {
	f := newFixture(t)
	f.bot.HandleMessage(context.Background(), inbound("!scoreboard"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "No scores") {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestRaceCommandModes(t *testing.T) {
	f := newFixture(t)
	future := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	f.calendar.races = []race.Race{{Name: "Test Grand Prix", Round: "1", Date: future}}

	f.bot.HandleMessage(context.Background(), inbound("!race"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "Next race") || !strings.Contains(reply, "Test Grand Prix") {
		t.Fatalf("next-race reply: %q", reply)
	}

	f.bot.HandleMessage(context.Background(), inbound("!race season"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "Season Calendar") {
		t.Fatalf("season reply: %q", reply)
	}
}

func TestHelpVersionAndUnknown(t *testing.T) {
	f := newFixture(t)

	f.bot.HandleMessage(context.Background(), inbound("!help"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "!guess") {
		t.Fatalf("help should list commands with the prefix: %q", reply)
	}

	f.bot.HandleMessage(context.Background(), inbound("!version"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "GuessQuote Bot") {
		t.Fatalf("version reply: %q", reply)
	}

	f.bot.HandleMessage(context.Background(), inbound("!doesnotexist"))
	if reply := f.sender.wait(t); !strings.Contains(reply, "Unknown command") {
		t.Fatalf("unknown command reply: %q", reply)
	}
}
