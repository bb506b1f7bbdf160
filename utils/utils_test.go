package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args := ParseArgs([]string{"compare", "--image=cap.jpg", "--name", "checker", "--json", "--group", "panel-a"})

	assert.Equal(t, map[string]string{
		"command": "compare",
		"image":   "cap.jpg",
		"name":    "checker",
		"json":    "true",
		"group":   "panel-a",
	}, args)
}

func TestParseArgsCommandAfterFlags(t *testing.T) {
	args := ParseArgs([]string{"--debug", "register", "--folder=/tmp/p", "--force"})

	assert.Equal(t, "register", args["command"])
	assert.Equal(t, "true", args["debug"])
	assert.Equal(t, "/tmp/p", args["folder"])
	assert.Equal(t, "true", args["force"])
}

func TestParseArgsWithoutCommand(t *testing.T) {
	args := ParseArgs([]string{"--image=a.png", "stray"})
	_, ok := args["command"]
	assert.False(t, ok)
	assert.Equal(t, "a.png", args["image"])
}

func TestParseThreshold(t *testing.T) {
	v, err := ParseThreshold("85.5")
	require.NoError(t, err)
	assert.Equal(t, 85.5, v)

	for _, bad := range []string{"-1", "101", "high"} {
		v, err := ParseThreshold(bad)
		assert.Error(t, err, bad)
		assert.Equal(t, 70.0, v)
	}
}

func TestTypedArgs(t *testing.T) {
	args := map[string]string{"width": "320", "cell": "-2", "timeout": "5s", "noisy": "true", "json": "false"}

	v, err := IntArg(args, "width", 640)
	require.NoError(t, err)
	assert.Equal(t, 320, v)

	v, err = IntArg(args, "cell", 6)
	assert.Error(t, err)
	assert.Equal(t, 6, v)

	v, err = IntArg(args, "height", 480)
	require.NoError(t, err)
	assert.Equal(t, 480, v)

	d, err := DurationArg(args, "timeout", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	assert.True(t, BoolArg(args, "noisy"))
	assert.False(t, BoolArg(args, "json"))
	assert.False(t, BoolArg(args, "missing"))
}

func TestIntArgMinAcceptsZero(t *testing.T) {
	v, err := IntArgMin(map[string]string{"hashdistance": "0"}, "hashdistance", 64, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = IntArgMin(map[string]string{"hashdistance": "-1"}, "hashdistance", 64, 0)
	assert.Error(t, err)
	assert.Equal(t, 64, v)

	v, err = IntArg(map[string]string{"width": "0"}, "width", 640)
	assert.Error(t, err)
	assert.Equal(t, 640, v)
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, c := range Commands {
		assert.Contains(t, buf.String(), " "+c+" ")
	}
}
