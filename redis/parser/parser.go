package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

const (
	readChunkSize  = 4096
	maxBulkLen     = 512 * 1024 * 1024
	maxArrayLen    = 1024 * 1024
	maxInlineLen   = 64 * 1024
	maxNestedDepth = 32
)

// ErrIncomplete means the buffer does not hold a full frame yet, read more bytes and retry
var ErrIncomplete = errors.New("incomplete frame")

// ProtocolError means the input can never become a valid frame
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func protocolError(format string, a ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, a...)}
}

// Payload stores redis.Reply or error
type Payload struct {
	Data redis.Reply
	Err  error
}

// Decode parses the first frame of buf.
// It returns the frame, the number of bytes consumed, and ErrIncomplete or a *ProtocolError on failure.
// An empty inline line is consumed with a nil frame.
func Decode(buf []byte) (redis.Reply, int, error) {
	return decode(buf, 0)
}

// DecodeCommand parses the first frame of buf as a request, which is always an array of bulk strings
func DecodeCommand(buf []byte) ([][]byte, int, error) {
	data, n, err := Decode(buf)
	if err != nil {
		return nil, 0, err
	}
	if data == nil {
		return nil, n, nil
	}
	r, ok := data.(*protocol.MultiBulkReply)
	if !ok {
		return nil, 0, protocolError("expected array of bulk strings")
	}
	return r.Args, n, nil
}

func decode(buf []byte, depth int) (redis.Reply, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}
	if depth > maxNestedDepth {
		return nil, 0, protocolError("nesting too deep")
	}
	lineEnd := bytes.Index(buf, []byte{'\r', '\n'})
	if lineEnd < 0 {
		if len(buf) > maxInlineLen {
			return nil, 0, protocolError("too big inline request")
		}
		return nil, 0, ErrIncomplete
	}
	line := buf[:lineEnd]
	consumed := lineEnd + 2
	if len(line) == 0 {
		if depth > 0 {
			return nil, 0, protocolError("missing type marker")
		}
		return nil, consumed, nil
	}
	/*
		RESP 通过第一个字符来表示格式.
			简单字符串：以"+" 开始， 如："+OK\r\n"
			错误：以"-" 开始，如："-ERR Invalid Synatx\r\n"
			整数：以":"开始，如：":1\r\n"
			字符串：以 $ 开始
			数组：以 * 开始
	*/
	switch line[0] {
	case '+':
		return protocol.MakeStatusReply(string(line[1:])), consumed, nil
	case '-':
		return protocol.MakeErrReply(string(line[1:])), consumed, nil
	case ':':
		value, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, 0, protocolError("illegal number %s", line[1:])
		}
		return protocol.MakeIntReply(value), consumed, nil
	case '$':
		return parseBulkString(buf, line, consumed)
	case '*':
		return parseArray(buf, line, consumed, depth)
	default:
		if depth > 0 {
			return nil, 0, protocolError("missing type marker %q", line[0])
		}
		// inline command, e.g. typed in telnet
		args := bytes.Fields(line)
		if len(args) == 0 {
			return nil, consumed, nil
		}
		return protocol.MakeMultiBulkReply(args), consumed, nil
	}
}

// 解析 bulk string 格式，例子： $3\r\nSET\r\n
func parseBulkString(buf, header []byte, consumed int) (redis.Reply, int, error) {
	strLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || strLen < -1 || strLen > maxBulkLen {
		return nil, 0, protocolError("illegal bulk string header: %s", header)
	}
	if strLen == -1 {
		return protocol.MakeNullBulkReply(), consumed, nil
	}
	end := consumed + int(strLen)
	if len(buf) < end+2 {
		return nil, 0, ErrIncomplete
	}
	if buf[end] != '\r' || buf[end+1] != '\n' {
		return nil, 0, protocolError("bulk string is not terminated by CRLF")
	}
	body := make([]byte, strLen)
	copy(body, buf[consumed:end])
	return protocol.MakeBulkReply(body), end + 2, nil
}

// 解析数组形式 例子：*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n
func parseArray(buf, header []byte, consumed, depth int) (redis.Reply, int, error) {
	arrayLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || arrayLen < -1 || arrayLen > maxArrayLen {
		return nil, 0, protocolError("illegal array header: %s", header)
	}
	if arrayLen == -1 {
		return protocol.MakeNullArrayReply(), consumed, nil
	}
	if arrayLen == 0 {
		return protocol.MakeEmptyMultiBulkReply(), consumed, nil
	}
	elements := make([]redis.Reply, 0, arrayLen)
	allBulk := true
	for i := int64(0); i < arrayLen; i++ {
		elem, n, err := decode(buf[consumed:], depth+1)
		if err != nil {
			return nil, 0, err
		}
		consumed += n
		switch elem.(type) {
		case *protocol.BulkReply, *protocol.NullBulkReply:
		default:
			allBulk = false
		}
		elements = append(elements, elem)
	}
	if !allBulk {
		return protocol.MakeMultiRawReply(elements), consumed, nil
	}
	args := make([][]byte, len(elements))
	for i, elem := range elements {
		if bulk, ok := elem.(*protocol.BulkReply); ok {
			args[i] = bulk.Arg
		}
	}
	return protocol.MakeMultiBulkReply(args), consumed, nil
}

// ParseStream reads data from io.Reader and send payloads through channel
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

// ParseBytes reads data from []byte and return all replies
func ParseBytes(data []byte) ([]redis.Reply, error) {
	ch := make(chan *Payload)
	reader := bytes.NewReader(data)
	go parse0(reader, ch)
	var results []redis.Reply
	for payload := range ch {
		if payload == nil {
			return nil, errors.New("no protocol")
		}
		if payload.Err != nil {
			if payload.Err == io.EOF {
				break
			}
			return nil, payload.Err
		}
		results = append(results, payload.Data)
	}
	return results, nil
}

// ParseOne reads data from []byte and return the first payload
func ParseOne(data []byte) (redis.Reply, error) {
	ch := make(chan *Payload)
	reader := bytes.NewReader(data)
	go parse0(reader, ch)
	payload := <-ch
	if payload == nil {
		return nil, errors.New("no protocol")
	}
	return payload.Data, payload.Err
}

func parse0(reader io.Reader, ch chan<- *Payload) {
	// 保证程序不会因为 panic 而退出
	defer func() {
		if err := recover(); err != nil {
			logger.Error(err, string(debug.Stack()))
		}
	}()
	defer close(ch)
	var buf []byte
	chunk := make([]byte, readChunkSize)
	for {
		consumed := 0
		for consumed < len(buf) {
			data, n, err := Decode(buf[consumed:])
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				// 协议错误之后无法再定位下一帧
				ch <- &Payload{Err: err}
				return
			}
			consumed += n
			if data != nil {
				ch <- &Payload{Data: data}
			}
		}
		if consumed > 0 {
			buf = append(buf[:0], buf[consumed:]...)
		}
		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 && n > 0 {
				// drain what arrived together with EOF first
				continue
			}
			if err == io.EOF && len(buf) > 0 {
				err = io.ErrUnexpectedEOF
			}
			ch <- &Payload{Err: err}
			return
		}
	}
}
