package vnx

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	primaryUID   = "50:06:01:60:B6:E0:1C:F4"
	secondaryUID = "50:06:01:60:88:60:05:FE"
	srcLUNWWN    = "60:06:01:60:41:C4:3D:00:6E:1E:12:52:1C:ED:E3:11"
	tgtLUNWWN    = "60:06:01:60:41:C4:3D:00:AA:1E:12:52:1C:ED:E3:11"
)

type reply struct {
	out string
	err error
}

// fakeRunner answers CLI calls from a per-subcommand script. The last
// scripted reply for a subcommand repeats; unscripted subcommands
// succeed with no output.
type fakeRunner struct {
	calls   [][]string
	replies map[string][]reply
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string][]reply{}}
}

func (f *fakeRunner) on(op, out string, err error) {
	f.replies[op] = append(f.replies[op], reply{out: out, err: err})
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	q := f.replies[args[2]]
	if len(q) == 0 {
		return "", nil
	}
	r := q[0]
	if len(q) > 1 {
		f.replies[args[2]] = q[1:]
	}
	return r.out, r.err
}

// ops returns the subcommand of every call in order.
func (f *fakeRunner) ops() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c[2])
	}
	return out
}

// last returns the full arguments of the most recent call to op.
func (f *fakeRunner) last(op string) []string {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i][2] == op {
			return f.calls[i]
		}
	}
	return nil
}

func newTestClient() (*fakeRunner, *Client) {
	run := newFakeRunner()
	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return run, New(run, WithLogger(log))
}

// mirrorOutput renders list output for one mirror view. An empty
// secondaryState omits the secondary image.
func mirrorOutput(name, secondaryState string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MirrorView Name:  %s\n", name)
	b.WriteString("MirrorView Description:\n")
	b.WriteString("Remote Mirror Status:  Mirrored\n")
	b.WriteString("MirrorView State:  Active\n")
	b.WriteString("Images:\n")
	fmt.Fprintf(&b, "Image UID:  %s\n", primaryUID)
	b.WriteString("Is Image Primary:  YES\n")
	fmt.Fprintf(&b, "Logical Unit UID:  %s\n", srcLUNWWN)
	b.WriteString("Image Condition:  Primary Image\n\n")
	if secondaryState != "" {
		fmt.Fprintf(&b, "Image UID:  %s\n", secondaryUID)
		b.WriteString("Is Image Primary:  NO\n")
		fmt.Fprintf(&b, "Logical Unit UID:  %s\n", tgtLUNWWN)
		fmt.Fprintf(&b, "Image State:  %s\n", secondaryState)
		b.WriteString("Image Condition:  Normal\n")
		b.WriteString("Recovery Policy:  Automatic\n")
		b.WriteString("Synchronization Rate:  High\n")
		b.WriteString("Synchronizing Progress(%):  100\n\n")
	}
	return b.String()
}

func groupOutput(name string, mirrors ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Group Name:  %s\n", name)
	b.WriteString("Group ID:  50:06:01:60:B6:E0:1C:F4:01:00:00:00:00:00:00:00\n")
	b.WriteString("Role:  Primary\n")
	b.WriteString("Condition:  Active\n")
	for _, m := range mirrors {
		fmt.Fprintf(&b, "Mirror Name:  %s\n", m)
		b.WriteString("Mirror State:  Active\n")
	}
	return b.String() + "\n"
}
