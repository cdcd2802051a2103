package annex

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRemote implements SpecialRemote for testing
type mockRemote struct {
	host    Host
	present map[string]bool
	calls   []string
	fail    error
	config  string
}

func (r *mockRemote) InitRemote(ctx context.Context) error {
	r.calls = append(r.calls, "initremote")
	return r.fail
}

func (r *mockRemote) Prepare(ctx context.Context) error {
	r.calls = append(r.calls, "prepare")
	value, err := r.host.GetConfig("hostname")
	if err != nil {
		return err
	}
	r.config = value
	r.host.Debug("prepared\nfor " + value)
	return r.fail
}

func (r *mockRemote) TransferStore(ctx context.Context, key, file string) error {
	r.calls = append(r.calls, "store "+key+" "+file)
	r.host.Progress(42)
	return r.fail
}

func (r *mockRemote) TransferRetrieve(ctx context.Context, key, file string) error {
	r.calls = append(r.calls, "retrieve "+key+" "+file)
	return r.fail
}

func (r *mockRemote) CheckPresent(ctx context.Context, key string) (bool, error) {
	r.calls = append(r.calls, "checkpresent "+key)
	return r.present[key], r.fail
}

func (r *mockRemote) Remove(ctx context.Context, key string) error {
	r.calls = append(r.calls, "remove "+key)
	return r.fail
}

func (r *mockRemote) ListConfigs() [][2]string {
	return [][2]string{{"hostname", "The hostname."}, {"path", "The path."}}
}

func run(t *testing.T, remote *mockRemote, input string) ([]string, error) {
	t.Helper()
	var out bytes.Buffer
	m := NewMaster(strings.NewReader(input), &out)
	remote.host = m
	m.LinkRemote(remote)

	err := m.Listen(context.Background())
	return strings.Split(strings.TrimRight(out.String(), "\n"), "\n"), err
}

func TestListen_Session(t *testing.T) {
	remote := &mockRemote{present: map[string]bool{"KEY1": true}}
	input := strings.Join([]string{
		"EXTENSIONS INFO ASYNC",
		"PREPARE",
		"VALUE nas.local",
		"TRANSFER STORE KEY1 /tmp/my file.bin",
		"TRANSFER RETRIEVE KEY1 /tmp/out",
		"CHECKPRESENT KEY1",
		"CHECKPRESENT KEY2",
		"REMOVE KEY1",
		"LISTCONFIGS",
		"GETCOST",
	}, "\n") + "\n"

	lines, err := run(t, remote, input)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"VERSION 1",
		"EXTENSIONS",
		"GETCONFIG hostname",
		"DEBUG prepared for nas.local",
		"PREPARE-SUCCESS",
		"PROGRESS 42",
		"TRANSFER-SUCCESS STORE KEY1",
		"TRANSFER-SUCCESS RETRIEVE KEY1",
		"CHECKPRESENT-SUCCESS KEY1",
		"CHECKPRESENT-FAILURE KEY2",
		"REMOVE-SUCCESS KEY1",
		"CONFIG hostname The hostname.",
		"CONFIG path The path.",
		"CONFIGEND",
		"UNSUPPORTED-REQUEST",
	}, lines)

	assert.Equal(t, "nas.local", remote.config)
	assert.Contains(t, remote.calls, "store KEY1 /tmp/my file.bin")
}

func TestListen_Failures(t *testing.T) {
	remote := &mockRemote{fail: &RemoteError{Message: "remote nas.local unreachable"}}
	input := "INITREMOTE\nTRANSFER STORE KEY1 /tmp/f\nCHECKPRESENT KEY1\nREMOVE KEY1\n"

	lines, err := run(t, remote, input)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"VERSION 1",
		"INITREMOTE-FAILURE remote nas.local unreachable",
		"PROGRESS 42",
		"TRANSFER-FAILURE STORE KEY1 remote nas.local unreachable",
		"CHECKPRESENT-UNKNOWN KEY1 remote nas.local unreachable",
		"REMOVE-FAILURE KEY1 remote nas.local unreachable",
	}, lines)
}

func TestListen_EmptyConfigValue(t *testing.T) {
	remote := &mockRemote{}
	_, err := run(t, remote, "PREPARE\nVALUE\n")
	require.NoError(t, err)
	assert.Equal(t, "", remote.config)
}

func TestListen_HostError(t *testing.T) {
	_, err := run(t, &mockRemote{}, "ERROR something broke\nINITREMOTE\n")
	assert.True(t, errors.Is(err, ErrHostError))
}

func TestListen_MalformedTransfer(t *testing.T) {
	lines, err := run(t, &mockRemote{}, "TRANSFER STORE KEY1\nTRANSFER MOVE KEY1 f\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"VERSION 1", "UNSUPPORTED-REQUEST", "UNSUPPORTED-REQUEST"}, lines)
}

func TestGetConfig_UnexpectedReply(t *testing.T) {
	var out bytes.Buffer
	m := NewMaster(strings.NewReader("PREPARE-SUCCESS\n"), &out)

	_, err := m.GetConfig("hostname")
	assert.Error(t, err)
}
