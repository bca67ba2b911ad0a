package diskproto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// EncodeInfoRequest builds the "I" command frame.
func EncodeInfoRequest() []byte {
	return []byte(OpInfo)
}

// EncodeReadRequest builds the "R <cyl> <sec>" command frame.
func EncodeReadRequest(cyl, sec int) []byte {
	return []byte(fmt.Sprintf("%s %d %d", OpRead, cyl, sec))
}

// EncodeWriteRequest builds the "W <cyl> <sec> <len> " header followed by
// the raw block bytes, as one payload for WriteFrame to frame.
func EncodeWriteRequest(cyl, sec int, data []byte) []byte {
	header := fmt.Sprintf("%s %d %d %d ", OpWrite, cyl, sec, len(data))
	buf := make([]byte, 0, len(header)+len(data))
	buf = append(buf, header...)
	buf = append(buf, data...)
	return buf
}

// ParseRequestLine splits a command frame into its op and the remaining
// raw bytes (which may include a binary suffix for W).
func ParseRequestLine(frame []byte) (op string, rest []byte) {
	i := 0
	for i < len(frame) && frame[i] != ' ' {
		i++
	}
	op = string(frame[:i])
	if i < len(frame) {
		rest = frame[i+1:]
	}
	return
}

// ParseReadRequest parses the "<cyl> <sec>" body of an R command.
func ParseReadRequest(rest []byte) (cyl, sec int, err error) {
	fields := strings.Fields(string(rest))
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("diskproto: malformed R request %q", rest)
	}
	cyl, err1 := strconv.Atoi(fields[0])
	sec, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, errors.Errorf("diskproto: malformed R request %q", rest)
	}
	return cyl, sec, nil
}

// ParseWriteRequest parses "<cyl> <sec> <len> " followed by len raw bytes.
func ParseWriteRequest(rest []byte) (cyl, sec, length int, data []byte, err error) {
	// header fields are space-separated ascii, the data starts right after
	// the third space.
	parts := make([]int, 0, 3)
	start := 0
	for i := 0; i < len(rest) && len(parts) < 3; i++ {
		if rest[i] == ' ' {
			parts = append(parts, i)
		}
	}
	if len(parts) < 3 {
		return 0, 0, 0, nil, errors.Errorf("diskproto: malformed W request header")
	}
	cylStr := string(rest[start:parts[0]])
	secStr := string(rest[parts[0]+1 : parts[1]])
	lenStr := string(rest[parts[1]+1 : parts[2]])
	cyl, err1 := strconv.Atoi(cylStr)
	sec, err2 := strconv.Atoi(secStr)
	length, err3 := strconv.Atoi(lenStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, nil, errors.Errorf("diskproto: malformed W request header")
	}
	data = rest[parts[2]+1:]
	return cyl, sec, length, data, nil
}

// EncodeInfoReply builds the "<ncyl> <nsec>" reply.
func EncodeInfoReply(ncyl, nsec int) []byte {
	return []byte(fmt.Sprintf("%d %d", ncyl, nsec))
}

// ParseInfoReply parses the "<ncyl> <nsec>" reply.
func ParseInfoReply(frame []byte) (InfoResponse, error) {
	fields := strings.Fields(string(frame))
	if len(fields) != 2 {
		return InfoResponse{}, errors.Errorf("diskproto: malformed info reply %q", frame)
	}
	ncyl, err1 := strconv.Atoi(fields[0])
	nsec, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return InfoResponse{}, errors.Errorf("diskproto: malformed info reply %q", frame)
	}
	return InfoResponse{NCyl: ncyl, NSec: nsec}, nil
}

// EncodeYes builds a "Yes" reply, optionally followed by a payload.
func EncodeYes(payload []byte) []byte {
	buf := make([]byte, 0, 3+len(payload))
	buf = append(buf, "Yes"...)
	if len(payload) > 0 {
		buf = append(buf, ' ')
		buf = append(buf, payload...)
	}
	return buf
}

// EncodeNo builds a "No <reason>" reply.
func EncodeNo(reason string) []byte {
	return []byte("No " + reason)
}

// IsYes reports whether frame begins with the "Yes" marker and returns the
// payload following it (after the single separating space, if any).
func IsYes(frame []byte) (payload []byte, ok bool) {
	const yes = "Yes"
	if len(frame) < len(yes) || string(frame[:len(yes)]) != yes {
		return nil, false
	}
	rest := frame[len(yes):]
	if len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return rest, true
}
