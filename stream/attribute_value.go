package stream

import (
	"encoding/base64"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AttrKind discriminates which field of AttributeValue is populated. A DynamoDB
// AttributeValue is a single-key tagged union on the wire (spec §6); AttrKind
// is how this repo models that tag in memory.
type AttrKind int

const (
	AttrNone AttrKind = iota
	AttrB
	AttrBOOL
	AttrBS
	AttrL
	AttrM
	AttrN
	AttrNS
	AttrNULL
	AttrS
	AttrSS
)

// AttributeValue is a single DynamoDB-style attribute value: exactly one of
// its fields is meaningful, selected by Kind. Marshals to and from the
// single-key tagged object described in spec §6 ("AttributeValue (<AV>) is
// a single-key object tagged by type").
type AttributeValue struct {
	Kind AttrKind

	B    []byte
	BOOL bool
	BS   [][]byte
	L    []AttributeValue
	M    map[string]AttributeValue
	N    string
	NS   []string
	NULL bool
	S    string
	SS   []string
}

func NewS(s string) AttributeValue  { return AttributeValue{Kind: AttrS, S: s} }
func NewN(n string) AttributeValue  { return AttributeValue{Kind: AttrN, N: n} }
func NewBOOL(b bool) AttributeValue { return AttributeValue{Kind: AttrBOOL, BOOL: b} }
func NewNULL() AttributeValue       { return AttributeValue{Kind: AttrNULL, NULL: true} }

func (av AttributeValue) MarshalJSON() ([]byte, error) {
	switch av.Kind {
	case AttrB:
		return json.Marshal(map[string]string{"B": base64.StdEncoding.EncodeToString(av.B)})
	case AttrBOOL:
		return json.Marshal(map[string]bool{"BOOL": av.BOOL})
	case AttrBS:
		enc := make([]string, len(av.BS))
		for i, b := range av.BS {
			enc[i] = base64.StdEncoding.EncodeToString(b)
		}
		return json.Marshal(map[string][]string{"BS": enc})
	case AttrL:
		return json.Marshal(map[string][]AttributeValue{"L": av.L})
	case AttrM:
		return json.Marshal(map[string]map[string]AttributeValue{"M": av.M})
	case AttrN:
		return json.Marshal(map[string]string{"N": av.N})
	case AttrNS:
		return json.Marshal(map[string][]string{"NS": av.NS})
	case AttrNULL:
		return json.Marshal(map[string]bool{"NULL": true})
	case AttrS:
		return json.Marshal(map[string]string{"S": av.S})
	case AttrSS:
		return json.Marshal(map[string][]string{"SS": av.SS})
	default:
		return nil, fmt.Errorf("stream: attribute value has no kind set")
	}
}

func (av *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("stream: attribute value must have exactly one tag, got %d", len(raw))
	}
	for tag, v := range raw {
		switch tag {
		case "B":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrB, B: b}
		case "BOOL":
			var b bool
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrBOOL, BOOL: b}
		case "BS":
			var ss []string
			if err := json.Unmarshal(v, &ss); err != nil {
				return err
			}
			bs := make([][]byte, len(ss))
			for i, s := range ss {
				b, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return err
				}
				bs[i] = b
			}
			*av = AttributeValue{Kind: AttrBS, BS: bs}
		case "L":
			var l []AttributeValue
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrL, L: l}
		case "M":
			var m map[string]AttributeValue
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrM, M: m}
		case "N":
			var n string
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrN, N: n}
		case "NS":
			var ns []string
			if err := json.Unmarshal(v, &ns); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrNS, NS: ns}
		case "NULL":
			*av = AttributeValue{Kind: AttrNULL, NULL: true}
		case "S":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrS, S: s}
		case "SS":
			var ss []string
			if err := json.Unmarshal(v, &ss); err != nil {
				return err
			}
			*av = AttributeValue{Kind: AttrSS, SS: ss}
		default:
			return fmt.Errorf("stream: unknown attribute value tag %q", tag)
		}
	}
	return nil
}
