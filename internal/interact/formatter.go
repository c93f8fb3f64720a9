package interact

import (
	"fmt"
	"os"
	"strings"

	wordwrap "github.com/mitchellh/go-wordwrap"
	log "github.com/sirupsen/logrus"
	terminal "golang.org/x/term"
)

// newLogger returns a logrus.Logger configured with the section-aware,
// color-on-a-real-terminal formatter used for all reconciliation progress
// output.
func newLogger() *log.Logger {
	logger := log.New()
	stderr := int(os.Stderr.Fd())
	formatter := &sectionFormatter{indent: "      "}
	if terminal.IsTerminal(stderr) {
		formatter.isTerminal = true
		formatter.width, _, _ = terminal.GetSize(stderr)
	}
	logger.SetFormatter(formatter)
	logger.SetOutput(os.Stderr)
	return logger
}

// sectionFormatter renders progress output as banners: a section header is
// printed once, the first time a line is reported under that section, and
// every following line for the same section is just an indented, leveled
// message underneath it. This trades the common "repeat the section tag on
// every line" layout for one that reads like a build log, where a change of
// section is the rare event worth a line of its own.
type sectionFormatter struct {
	isTerminal  bool
	width       int
	indent      string
	lastSection string
}

var levelTag = map[log.Level]string{
	log.DebugLevel: "dbg",
	log.InfoLevel:  "···",
	log.WarnLevel:  "!!!",
	log.ErrorLevel: "xxx",
	log.FatalLevel: "xxx",
	log.PanicLevel: "xxx",
}

var levelColor = map[log.Level]string{
	log.DebugLevel: "\x1b[36m",
	log.InfoLevel:  "\x1b[32m",
	log.WarnLevel:  "\x1b[33m",
	log.ErrorLevel: "\x1b[31m",
	log.FatalLevel: "\x1b[31m",
	log.PanicLevel: "\x1b[31m",
}

func (f *sectionFormatter) Format(entry *log.Entry) ([]byte, error) {
	var out strings.Builder

	section, _ := entry.Data["section"].(string)
	if section != "" && section != f.lastSection {
		if f.lastSection != "" {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%s\n", section)
		f.lastSection = section
	}

	tag := levelTag[entry.Level]
	if tag == "" {
		tag = "···"
	}
	if f.isTerminal {
		if c := levelColor[entry.Level]; c != "" {
			tag = c + tag + "\x1b[0m"
		}
	}

	message := f.wrap(entry.Message)
	fmt.Fprintf(&out, "%s%s %s\n", f.indent, tag, message)
	return []byte(out.String()), nil
}

// wrap folds message to fit the terminal, continuing wrapped lines at the
// formatter's fixed indent rather than aligning them under the variable-width
// header that produced the first line.
func (f *sectionFormatter) wrap(message string) string {
	if !f.isTerminal || f.width <= 0 {
		return message
	}
	available := f.width - len(f.indent) - 4
	if available < 20 {
		return message
	}
	wrapped := wordwrap.WrapString(message, uint(available))
	return strings.Replace(wrapped, "\n", "\n"+f.indent+"    ", -1)
}
