package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

type epochInfo struct {
	Index int
	Time  float64
}

// assertLogMatches will fuzzy match log lines. It checks the time format, but ignores the exact
// time. It expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Weak verification that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	// Parse the structured fields into maps so key order does not matter.
	expectedMap := make(map[string]any)
	err = json.Unmarshal([]byte(expectedParts[4]), &expectedMap)
	test.That(t, err, test.ShouldBeNil)

	actualMap := make(map[string]any)
	err = json.Unmarshal([]byte(actualParts[4]), &actualMap)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func newBufferLogger(name string, level Level) (*impl, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &impl{name: name, level: NewAtomicLevelAt(level), inUTC: true, appenders: []Appender{NewWriterAppender(buf)}}, buf
}

func TestConsoleOutputFormat(t *testing.T) {
	logger, notStdout := newBufferLogger("", DEBUG)

	logger.Infow("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	logging/impl_test.go:67	impl Info log`)

	logger.Infow("impl logw", "key", "value", "epoch", epochInfo{Index: 3, Time: 0.5})
	assertLogMatches(t, notStdout,
		`2023-10-31T14:25:10.239Z	INFO	logging/impl_test.go:71	impl logw	{"key":"value","epoch":{"Index":3,"Time":0.5}}`)

	logger.Errorw("solver failed", "epoch", 7)
	assertLogMatches(t, notStdout,
		`2023-10-31T14:25:10.239Z	ERROR	logging/impl_test.go:75	solver failed	{"epoch":7}`)

	logger.Debugw("unpaired", "dangling")
	output, err := notStdout.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, output, test.ShouldContainSubstring, "unpaired log key")
}

func TestLevels(t *testing.T) {
	logger, notStdout := newBufferLogger("", WARN)

	logger.Debugw("hidden")
	logger.Infow("hidden")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Warnw("shown")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	WARN	logging/impl_test.go:94	shown`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debugw("now shown")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	DEBUG	logging/impl_test.go:100	now shown`)

	for _, tc := range []struct {
		in  string
		out Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.out)
		test.That(t, level.AsZap().String(), test.ShouldEqual, strings.ToLower(level.String()))
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSublogger(t *testing.T) {
	logger, notStdout := newBufferLogger("auvslam", INFO)
	sub := logger.Sublogger("frontend")

	sub.Infow("from sub")
	output, err := notStdout.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	parts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	test.That(t, parts[2], test.ShouldEqual, "auvslam.frontend")
	test.That(t, parts[4], test.ShouldEqual, "from sub")

	// Sublogger levels are independent of the parent.
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
	sub.Warnw("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("epoch solved", "index", 4)
	logger.Sublogger("isam").Warnw("relinearizing")

	test.That(t, logs.FilterMessage("epoch solved").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterField(logs.All()[0].Context[0]).Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessageSnippet("relinear").Len(), test.ShouldEqual, 1)
	isam := logs.Filter(func(e observer.LoggedEntry) bool { return e.LoggerName == "isam" })
	test.That(t, isam.Len(), test.ShouldEqual, 1)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	appender := NewFileAppender(path, 1, 1)
	logger := &impl{name: "file", level: NewAtomicLevelAt(INFO)}
	logger.AddAppender(appender)

	logger.Infow("epoch processed", "epoch", 3)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "epoch processed")
	test.That(t, string(contents), test.ShouldContainSubstring, `{"epoch":3}`)
}
