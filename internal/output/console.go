package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/pagefire/internal/metrics"
)

// ClockFormat renders wall-clock timestamps in start/end markers and result dumps.
const ClockFormat = "15:04:05.000"

// Params are the run settings echoed before the run starts.
type Params struct {
	TargetURL string        `json:"target_url" yaml:"target_url"`
	Parallel  int           `json:"parallel" yaml:"parallel"`
	Repeat    int           `json:"repeat" yaml:"repeat"`
	OpenDelay time.Duration `json:"-" yaml:"-"`
	WaitText  string        `json:"wait_text,omitempty" yaml:"wait_text,omitempty"`
	Headless  bool          `json:"headless" yaml:"headless"`
	Rate      int           `json:"rate,omitempty" yaml:"rate,omitempty"`

	OpenDelayMs int64 `json:"open_delay_ms" yaml:"open_delay_ms"`
}

// PrintParams echoes the five run parameters, one per line.
func PrintParams(w io.Writer, p Params) {
	fmt.Fprintf(w, "param1 URL     : %s\n", p.TargetURL)
	fmt.Fprintf(w, "param2 open    : %d browsers\n", p.Parallel)
	fmt.Fprintf(w, "param3 repeat  : %d times\n", p.Repeat)
	fmt.Fprintf(w, "param4 delay   : %d ms (For opening the next browser)\n", p.OpenDelay.Milliseconds())
	fmt.Fprintf(w, "param5 selector: %s (For checking page loading completion)\n", p.WaitText)
}

// Console prints run markers and one line per completed trial. It is safe for
// concurrent use; each line is written whole.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console observer writing to w. A nil writer discards output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (c *Console) RunStarted(at time.Time) {
	c.printf("====== start : %s ======\n", at.Format(ClockFormat))
}

func (c *Console) TrialCompleted(t metrics.Trial) {
	c.printf("#%d-%d time: %dms\n", t.Worker, t.Number, t.DurationMs())
}

func (c *Console) RunFinished(at time.Time) {
	c.printf("====== end:%s ======\n", at.Format(ClockFormat))
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
