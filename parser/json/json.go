// Package json implements the incremental, suspendable JSON lexer
// instance of the resumable-lexer pattern: ParseChunk accepts bytes in
// any slicing the caller finds convenient, driving scope-specific
// delegates as the document's structure is recognized.
package json

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// NodeType identifies which field of Node carries a callback's payload.
type NodeType int

const (
	Object NodeType = iota
	Array
	String
	Number
	Boolean
	Null
	End
)

// Node is passed to a scope's delegate on every structural event: an
// object/array start, a primitive value, or the End of the enclosing
// scope. A delegate handling an Object or Array start may set OnChild
// before returning, to receive that scope's own child events — mirrors
// dmem json.c's node.on_child field.
type Node struct {
	Type NodeType
	Key  string // set when this node is an object member
	Str  string
	Num  float64
	Bool bool

	OnChild Delegate
}

// Delegate handles one structural event; returning false aborts the
// parse with an error.
type Delegate func(*Node) bool

type scope struct {
	delegate Delegate
	typ      NodeType
}

type state int

const (
	stateValueBegin state = iota
	stateNext
	stateObjectNext
	stateKeyString
	stateObjectColon
	stateValueString
	stateValueNumber
	stateValueToken
	stateUTF8BOM2
	stateUTF8BOM3
)

type lexBuf struct {
	partial []byte
	buf     []byte
}

func (b *lexBuf) clear() {
	b.partial = b.partial[:0]
	b.buf = b.buf[:0]
}

// Parser is one incremental JSON document parse in progress. The zero
// value is not usable; construct with New.
type Parser struct {
	state state

	scopes []scope

	key   lexBuf
	value lexBuf

	currentKey     string
	haveCurrentKey bool

	err error
}

// New creates a Parser whose root scope (the document itself) dispatches
// to root.
func New(root Delegate) *Parser {
	return &Parser{scopes: []scope{{delegate: root, typ: End}}}
}

// Err returns the grammar error that aborted the parse, if any.
func (p *Parser) Err() error { return p.err }

func (p *Parser) top() *scope { return &p.scopes[len(p.scopes)-1] }

func (p *Parser) pushScope(child Delegate, typ NodeType) {
	p.scopes = append(p.scopes, scope{delegate: child, typ: typ})
}

func (p *Parser) popScope() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func isControlChar(c byte) bool { return c < ' ' }
func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
func isDigit(c byte) bool { return '0' <= c && c <= '9' }

const (
	utf8BOM1 = 0xEF
	utf8BOM2 = 0xBB
	utf8BOM3 = 0xBF
)

type lexResult int

const (
	lexOK lexResult = iota
	lexNeedMore
	lexError
)

func (p *Parser) emit(scp *scope, n *Node) bool {
	if scp.delegate == nil {
		return true
	}
	return scp.delegate(n)
}

func (p *Parser) abort() error {
	if p.err == nil {
		p.err = fmt.Errorf("json: callback abort")
	}
	return p.err
}

// ParseChunk feeds data into the parser. It returns the number of bytes
// of data consumed (always len(data) when the parser suspends awaiting
// more input, since unconsumed bytes are always absorbed into a partial
// buffer before returning) and a non-nil error only on a permanent
// grammar violation or delegate abort — once an error is returned the
// Parser must not be reused.
func (p *Parser) ParseChunk(data []byte) (int, error) {
	if len(p.scopes) == 0 {
		return 0, nil
	}

	pos := 0
	for {
		switch p.state {

		case stateValueBegin:
			np, res := p.consumeWhitespace(data, pos)
			pos = np
			if res == lexNeedMore {
				return len(data), nil
			}

			scp := p.top()
			switch c := data[pos]; {
			case c == '[':
				pos++
				n := Node{Type: Array}
				if p.haveCurrentKey {
					n.Key = p.currentKey
					p.haveCurrentKey = false
				}
				if !p.emit(scp, &n) {
					return pos, p.abort()
				}
				p.pushScope(n.OnChild, Array)
				continue

			case c == ']' && scp.typ == Array:
				pos++
				n := Node{Type: End}
				if !p.emit(scp, &n) {
					return pos, p.abort()
				}
				p.popScope()
				p.state = stateNext
				continue

			case c == '{':
				pos++
				n := Node{Type: Object}
				if p.haveCurrentKey {
					n.Key = p.currentKey
					p.haveCurrentKey = false
				}
				if !p.emit(scp, &n) {
					return pos, p.abort()
				}
				p.pushScope(n.OnChild, Object)
				p.state = stateObjectNext
				continue

			case c == '"':
				pos++
				p.value.clear()
				p.state = stateValueString
				continue

			case c == '-' || isDigit(c):
				p.value.clear()
				p.state = stateValueNumber
				continue

			case 'a' <= c && c <= 'z':
				p.value.clear()
				p.state = stateValueToken
				continue

			case c == utf8BOM1:
				pos++
				p.state = stateUTF8BOM2
				continue

			default:
				p.err = fmt.Errorf("json: invalid character %q in input stream", c)
				return pos, p.err
			}

		case stateUTF8BOM2:
			if pos >= len(data) {
				return len(data), nil
			}
			if data[pos] == utf8BOM2 {
				pos++
				p.state = stateUTF8BOM3
				continue
			}
			p.err = fmt.Errorf("json: invalid UTF-8 BOM")
			return pos, p.err

		case stateUTF8BOM3:
			if pos >= len(data) {
				return len(data), nil
			}
			if data[pos] == utf8BOM3 {
				pos++
				p.state = stateValueBegin
				continue
			}
			p.err = fmt.Errorf("json: invalid UTF-8 BOM")
			return pos, p.err

		case stateNext:
			if p.top().typ == End {
				// The single top-level value is complete; the root scope
				// itself gets no End event.
				p.popScope()
				return pos, nil
			}

			np, res := p.consumeWhitespace(data, pos)
			pos = np
			if res == lexNeedMore {
				return len(data), nil
			}

			scp := p.top()
			switch scp.typ {
			case Object:
				switch data[pos] {
				case '}':
					pos++
					n := Node{Type: End}
					if !p.emit(scp, &n) {
						return pos, p.abort()
					}
					p.popScope()
					continue
				case ',':
					pos++
					p.state = stateObjectNext
					continue
				default:
					p.err = fmt.Errorf("json: expected '}' or ',' between object entries")
					return pos, p.err
				}
			case Array:
				switch data[pos] {
				case ']':
					pos++
					n := Node{Type: End}
					if !p.emit(scp, &n) {
						return pos, p.abort()
					}
					p.popScope()
					continue
				case ',':
					pos++
					p.state = stateValueBegin
					continue
				default:
					p.err = fmt.Errorf("json: expected ']' or ',' between array entries")
					return pos, p.err
				}
			}

		case stateObjectNext:
			np, res := p.consumeWhitespace(data, pos)
			pos = np
			if res == lexNeedMore {
				return len(data), nil
			}

			p.key.clear()

			switch data[pos] {
			case '}':
				pos++
				n := Node{Type: End}
				if !p.emit(p.top(), &n) {
					return pos, p.abort()
				}
				p.popScope()
				p.state = stateNext
				continue
			case '"':
				pos++
				p.state = stateKeyString
				continue
			default:
				p.err = fmt.Errorf("json: expected '\"' or '}' looking for an object key")
				return pos, p.err
			}

		case stateKeyString:
			np, s, res := p.lexString(&p.key, data, pos)
			pos = np
			switch res {
			case lexNeedMore:
				return len(data), nil
			case lexError:
				return pos, p.err
			}
			p.currentKey = s
			p.haveCurrentKey = true
			p.state = stateObjectColon
			continue

		case stateObjectColon:
			np, res := p.consumeWhitespace(data, pos)
			pos = np
			if res == lexNeedMore {
				return len(data), nil
			}
			if data[pos] != ':' {
				p.err = fmt.Errorf("json: expected ':' after object key")
				return pos, p.err
			}
			pos++
			p.value.clear()
			p.state = stateValueBegin
			continue

		case stateValueString:
			np, s, res := p.lexString(&p.value, data, pos)
			pos = np
			switch res {
			case lexNeedMore:
				return len(data), nil
			case lexError:
				return pos, p.err
			}
			n := Node{Type: String, Str: s}
			if p.haveCurrentKey {
				n.Key = p.currentKey
				p.haveCurrentKey = false
			}
			if !p.emit(p.top(), &n) {
				return pos, p.abort()
			}
			p.state = stateNext
			continue

		case stateValueNumber:
			np, v, res := p.lexNumber(data, pos)
			pos = np
			switch res {
			case lexNeedMore:
				return len(data), nil
			case lexError:
				return pos, p.err
			}
			n := Node{Type: Number, Num: v}
			if p.haveCurrentKey {
				n.Key = p.currentKey
				p.haveCurrentKey = false
			}
			if !p.emit(p.top(), &n) {
				return pos, p.abort()
			}
			p.state = stateNext
			continue

		case stateValueToken:
			np, tok, res := p.lexToken(data, pos)
			pos = np
			switch res {
			case lexNeedMore:
				return len(data), nil
			case lexError:
				return pos, p.err
			}
			var n Node
			switch tok {
			case "true":
				n = Node{Type: Boolean, Bool: true}
			case "false":
				n = Node{Type: Boolean, Bool: false}
			case "null":
				n = Node{Type: Null}
			default:
				p.err = fmt.Errorf("json: invalid token %q", tok)
				return pos, p.err
			}
			if p.haveCurrentKey {
				n.Key = p.currentKey
				p.haveCurrentKey = false
			}
			if !p.emit(p.top(), &n) {
				return pos, p.abort()
			}
			p.state = stateNext
			continue
		}
	}
}

func (p *Parser) consumeWhitespace(data []byte, pos int) (int, lexResult) {
	for {
		if pos >= len(data) {
			return pos, lexNeedMore
		}
		switch data[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
		default:
			return pos, lexOK
		}
	}
}

// lexString implements the original's GetString. Because an escaping
// backslash can be split from the character it escapes by a chunk
// boundary, any leftover buf.partial is first reassembled with the new
// chunk into one contiguous slice before scanning resumes — scanning a
// fresh chunk in isolation would otherwise misread a `\` left over from
// the previous chunk as a literal character.
func (p *Parser) lexString(buf *lexBuf, data []byte, pos int) (int, string, lexResult) {
	var src []byte
	if len(buf.partial) > 0 {
		src = append(append([]byte(nil), buf.partial...), data[pos:]...)
		buf.partial = buf.partial[:0]
	} else {
		src = data[pos:]
	}

	i, start := 0, 0
	for {
		if i >= len(src) {
			buf.partial = append(buf.partial, src[start:i]...)
			return len(data), "", lexNeedMore
		}
		c := src[i]
		switch {
		case c == '"':
			buf.buf = append(buf.buf, src[start:i]...)
			i++
			return pos + i - (len(src) - len(data[pos:])), string(buf.buf), lexOK

		case isControlChar(c):
			p.err = fmt.Errorf("json: control character in string; use an escape")
			return pos, "", lexError

		case c == '\\':
			buf.buf = append(buf.buf, src[start:i]...)
			if i+2 > len(src) {
				buf.partial = append(buf.partial, src[i:]...)
				return len(data), "", lexNeedMore
			}
			switch src[i+1] {
			case '"', '\\', '/':
				buf.buf = append(buf.buf, src[i+1])
				i += 2
			case 'b':
				buf.buf = append(buf.buf, '\b')
				i += 2
			case 'f':
				buf.buf = append(buf.buf, '\f')
				i += 2
			case 'n':
				buf.buf = append(buf.buf, '\n')
				i += 2
			case 't':
				buf.buf = append(buf.buf, '\t')
				i += 2
			case 'r':
				buf.buf = append(buf.buf, '\r')
				i += 2
			case 'u':
				ni, res := p.decodeUnicodeEscape(buf, src, i)
				if res != lexOK {
					return len(data), "", res
				}
				i = ni
			default:
				p.err = fmt.Errorf("json: unknown escape character")
				return pos, "", lexError
			}
			start = i

		default:
			i++
		}
	}
}

// decodeUnicodeEscape handles one \uXXXX escape starting at src[i],
// including a following low surrogate for a high-surrogate first half,
// per spec.md §4.8's string-escape rules. src is the (possibly
// partial-reassembled) buffer lexString is scanning, not the caller's
// raw chunk.
func (p *Parser) decodeUnicodeEscape(buf *lexBuf, src []byte, i int) (int, lexResult) {
	if i+6 > len(src) {
		buf.partial = append(buf.partial, src[i:]...)
		return 0, lexNeedMore
	}
	if !isHex(src[i+2]) || !isHex(src[i+3]) || !isHex(src[i+4]) || !isHex(src[i+5]) {
		p.err = fmt.Errorf("json: non-hex character after \\u escape")
		return 0, lexError
	}
	hi, err := strconv.ParseUint(string(src[i+2:i+6]), 16, 32)
	if err != nil {
		p.err = fmt.Errorf("json: invalid \\u escape: %w", err)
		return 0, lexError
	}

	switch {
	case hi < 0xD800 || hi > 0xDFFF:
		var tmp [utf8.UTFMax]byte
		n := utf8.EncodeRune(tmp[:], rune(hi))
		buf.buf = append(buf.buf, tmp[:n]...)
		return i + 6, lexOK

	case hi < 0xDC00:
		if i+12 > len(src) {
			buf.partial = append(buf.partial, src[i:]...)
			return 0, lexNeedMore
		}
		if src[i+6] != '\\' || src[i+7] != 'u' {
			p.err = fmt.Errorf("json: expected \\u escape for a low surrogate after a high surrogate")
			return 0, lexError
		}
		if !isHex(src[i+8]) || !isHex(src[i+9]) || !isHex(src[i+10]) || !isHex(src[i+11]) {
			p.err = fmt.Errorf("json: non-hex character after \\u escape")
			return 0, lexError
		}
		lo, err := strconv.ParseUint(string(src[i+8:i+12]), 16, 32)
		if err != nil {
			p.err = fmt.Errorf("json: invalid \\u escape: %w", err)
			return 0, lexError
		}
		if lo < 0xDC00 || lo > 0xDFFF {
			p.err = fmt.Errorf("json: high surrogate may only be followed by a low surrogate")
			return 0, lexError
		}
		r := 0x10000 + (rune(hi)-0xD800)<<10 + (rune(lo) - 0xDC00)
		var tmp [utf8.UTFMax]byte
		n := utf8.EncodeRune(tmp[:], r)
		buf.buf = append(buf.buf, tmp[:n]...)
		return i + 12, lexOK

	default:
		p.err = fmt.Errorf("json: low surrogate must be preceded by a high surrogate")
		return 0, lexError
	}
}

// lexNumber implements the original's GetNumber: validates the JSON
// number grammar structurally before handing the accumulated text to
// strconv.ParseFloat (the strtod-equivalent).
func (p *Parser) lexNumber(data []byte, pos int) (int, float64, lexResult) {
	start := pos
	for pos < len(data) {
		c := data[pos]
		if isDigit(c) || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			pos++
		} else {
			break
		}
	}
	p.value.partial = append(p.value.partial, data[start:pos]...)
	if pos == len(data) {
		return pos, 0, lexNeedMore
	}

	text := p.value.partial
	i := 0
	if i < len(text) && text[i] == '-' {
		i++
	}
	if i >= len(text) {
		p.err = fmt.Errorf("json: unexpected character in number")
		return pos, 0, lexError
	}
	if text[i] == '0' {
		i++
	} else if isDigit(text[i]) {
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	} else {
		p.err = fmt.Errorf("json: unexpected character in number")
		return pos, 0, lexError
	}
	if i < len(text) && text[i] == '.' {
		i++
		if i >= len(text) || !isDigit(text[i]) {
			p.err = fmt.Errorf("json: expected digit after '.' in number")
			return pos, 0, lexError
		}
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		i++
		if i < len(text) && (text[i] == '+' || text[i] == '-') {
			i++
		}
		if i >= len(text) || !isDigit(text[i]) {
			p.err = fmt.Errorf("json: expected digit after exponent in number")
			return pos, 0, lexError
		}
		for i < len(text) && isDigit(text[i]) {
			i++
		}
	}
	if i != len(text) {
		p.err = fmt.Errorf("json: invalid number")
		return pos, 0, lexError
	}

	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		p.err = fmt.Errorf("json: invalid number: %w", err)
		return pos, 0, lexError
	}
	return pos, v, lexOK
}

// lexToken implements the original's GetToken: a bare lowercase-letter
// run, matched against true/false/null by the caller.
func (p *Parser) lexToken(data []byte, pos int) (int, string, lexResult) {
	start := pos
	for pos < len(data) && 'a' <= data[pos] && data[pos] <= 'z' {
		pos++
	}
	p.value.partial = append(p.value.partial, data[start:pos]...)
	if pos == len(data) {
		return pos, "", lexNeedMore
	}
	return pos, string(p.value.partial), lexOK
}

// ParseComplete reports whether the document is fully parsed: the scope
// stack must be back to empty (a single top-level value was consumed
// in full). A parser sitting in value-number or
// value-token state is finalized by feeding one space byte, matching
// the original's trick of using whitespace to force the trailing
// token/number to flush.
func (p *Parser) ParseComplete() error {
	if len(p.scopes) == 0 {
		return nil
	}
	if len(p.scopes) > 1 {
		return fmt.Errorf("json: document incomplete")
	}
	if p.state == stateValueNumber || p.state == stateValueToken {
		if _, err := p.ParseChunk([]byte(" ")); err != nil {
			return err
		}
		if len(p.scopes) == 0 {
			return nil
		}
	}
	return fmt.Errorf("json: document incomplete")
}
