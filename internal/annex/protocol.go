package annex

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ProtocolVersion is announced at startup
const ProtocolVersion = 1

// ErrHostError is returned by Listen when git-annex reports an ERROR
var ErrHostError = errors.New("git-annex reported an error")

// Master speaks the protocol with git-annex on behalf of a SpecialRemote.
// Requests are handled one at a time, in order.
type Master struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer *bufio.Writer
	remote SpecialRemote
}

// Ensure Master implements Host
var _ Host = (*Master)(nil)

// NewMaster reads requests from in and writes replies to out
func NewMaster(in io.Reader, out io.Writer) *Master {
	return &Master{
		reader: bufio.NewReader(in),
		writer: bufio.NewWriter(out),
	}
}

// LinkRemote sets the remote that handles requests
func (m *Master) LinkRemote(remote SpecialRemote) {
	m.remote = remote
}

func (m *Master) send(words ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := strings.Join(words, " ")
	line = strings.NewReplacer("\r", " ", "\n", " ").Replace(line)
	m.writer.WriteString(line)
	m.writer.WriteByte('\n')
	m.writer.Flush()
}

func (m *Master) readLine() (string, error) {
	line, err := m.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// GetConfig asks git-annex for a setting of this remote
func (m *Master) GetConfig(name string) (string, error) {
	m.send("GETCONFIG", name)
	line, err := m.readLine()
	if err != nil {
		return "", fmt.Errorf("waiting for VALUE: %w", err)
	}
	if line != "VALUE" && !strings.HasPrefix(line, "VALUE ") {
		return "", fmt.Errorf("unexpected reply to GETCONFIG: %q", line)
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "VALUE"), " "), nil
}

// Debug sends a debug line
func (m *Master) Debug(message string) {
	m.send("DEBUG", message)
}

// Progress reports bytes transferred
func (m *Master) Progress(bytes int64) {
	m.send("PROGRESS", strconv.FormatInt(bytes, 10))
}

// Listen announces the protocol version and serves requests until in is
// closed or git-annex sends ERROR.
func (m *Master) Listen(ctx context.Context) error {
	if m.remote == nil {
		return errors.New("no remote linked")
	}

	m.send("VERSION", strconv.Itoa(ProtocolVersion))

	for {
		line, err := m.readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
		if line == "" {
			continue
		}

		if err := m.handle(ctx, line); err != nil {
			return err
		}
	}
}

// message renders err for a reply
func message(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

func (m *Master) handle(ctx context.Context, line string) error {
	command, rest, _ := strings.Cut(line, " ")

	switch command {
	case "INITREMOTE":
		if err := m.remote.InitRemote(ctx); err != nil {
			m.send("INITREMOTE-FAILURE", message(err))
		} else {
			m.send("INITREMOTE-SUCCESS")
		}

	case "PREPARE":
		if err := m.remote.Prepare(ctx); err != nil {
			m.send("PREPARE-FAILURE", message(err))
		} else {
			m.send("PREPARE-SUCCESS")
		}

	case "TRANSFER":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) != 3 || (parts[0] != "STORE" && parts[0] != "RETRIEVE") {
			m.send("UNSUPPORTED-REQUEST")
			return nil
		}
		direction, key, file := parts[0], parts[1], parts[2]

		var err error
		if direction == "STORE" {
			err = m.remote.TransferStore(ctx, key, file)
		} else {
			err = m.remote.TransferRetrieve(ctx, key, file)
		}
		if err != nil {
			m.send("TRANSFER-FAILURE", direction, key, message(err))
		} else {
			m.send("TRANSFER-SUCCESS", direction, key)
		}

	case "CHECKPRESENT":
		present, err := m.remote.CheckPresent(ctx, rest)
		switch {
		case err != nil:
			m.send("CHECKPRESENT-UNKNOWN", rest, message(err))
		case present:
			m.send("CHECKPRESENT-SUCCESS", rest)
		default:
			m.send("CHECKPRESENT-FAILURE", rest)
		}

	case "REMOVE":
		if err := m.remote.Remove(ctx, rest); err != nil {
			m.send("REMOVE-FAILURE", rest, message(err))
		} else {
			m.send("REMOVE-SUCCESS", rest)
		}

	case "EXTENSIONS":
		m.send("EXTENSIONS")

	case "LISTCONFIGS":
		lister, ok := m.remote.(ConfigLister)
		if !ok {
			m.send("UNSUPPORTED-REQUEST")
			return nil
		}
		for _, c := range lister.ListConfigs() {
			m.send("CONFIG", c[0], c[1])
		}
		m.send("CONFIGEND")

	case "ERROR":
		return fmt.Errorf("%w: %s", ErrHostError, rest)

	default:
		m.send("UNSUPPORTED-REQUEST")
	}
	return nil
}
