package store

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/behrlich/spot-solver/pkg/cards"
	"github.com/behrlich/spot-solver/pkg/notation"
	"github.com/behrlich/spot-solver/pkg/solver"
	"github.com/behrlich/spot-solver/pkg/tree"
)

// Blob layout: magic, format version as a varint, the Solution message,
// then a big-endian CRC32 (IEEE) of everything before it.
var magic = []byte("SPOT")

// FormatVersion is bumped whenever the message layout changes
const FormatVersion = 1

// Solution fields
const (
	solKey            protowire.Number = 1
	solStreet         protowire.Number = 2
	solBoard          protowire.Number = 3
	solPot            protowire.Number = 4
	solStack          protowire.Number = 5
	solIterations     protowire.Number = 6
	solExploitability protowire.Number = 7
	solWarning        protowire.Number = 8
	solHandsOOP       protowire.Number = 9
	solHandsIP        protowire.Number = 10
	solStreets        protowire.Number = 11
	solBuckets        protowire.Number = 12
)

// DivergenceWarning fields
const (
	warnIteration protowire.Number = 1
	warnPrevious  protowire.Number = 2
	warnCurrent   protowire.Number = 3
)

// StreetStrategy fields
const (
	ssStreet     protowire.Number = 1
	ssNumBuckets protowire.Number = 2
	ssHandsOOP   protowire.Number = 3
	ssHandsIP    protowire.Number = 4
	ssTree       protowire.Number = 5
	ssAvgOOP     protowire.Number = 6
	ssAvgIP      protowire.Number = 7
)

// GameTree fields
const (
	treeBoard    protowire.Number = 1
	treeStartPot protowire.Number = 2
	treeStack    protowire.Number = 3
	treeNode     protowire.Number = 4
)

// Node fields. Ids are implied by order and children are rebuilt from
// parents.
const (
	nodeParent   protowire.Number = 1
	nodeLabel    protowire.Number = 2
	nodeKind     protowire.Number = 3
	nodePlayer   protowire.Number = 4
	nodeStreet   protowire.Number = 5
	nodePot      protowire.Number = 6
	nodeInvOOP   protowire.Number = 7
	nodeInvIP    protowire.Number = 8
	nodeCard     protowire.Number = 9
	nodeTerminal protowire.Number = 10
	nodeFolder   protowire.Number = 11
	nodeSlot     protowire.Number = 12
)

// BucketTables fields
const (
	bktNum     protowire.Number = 1
	bktFlopOOP protowire.Number = 2
	bktFlopIP  protowire.Number = 3
	bktTurn    protowire.Number = 4
	bktRiver   protowire.Number = 5

	// inside turn and river entries
	runTurn  protowire.Number = 1
	runRiver protowire.Number = 2
	runOOP   protowire.Number = 3
	runIP    protowire.Number = 4
)

// Marshal encodes a solution. Encoding is deterministic: the same solution
// always produces the same bytes.
func Marshal(sol *solver.Solution) ([]byte, error) {
	if sol == nil || len(sol.Streets) == 0 {
		return nil, errors.New("marshal: solution has no strategies")
	}
	b := append([]byte(nil), magic...)
	b = protowire.AppendVarint(b, FormatVersion)
	b = appendSolution(b, sol)
	return binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(b)), nil
}

// Unmarshal decodes a blob written by Marshal. Damaged or foreign blobs
// fail with an error matching ErrCorrupt.
func Unmarshal(blob []byte) (*solver.Solution, error) {
	if len(blob) < len(magic)+1+4 || !bytes.Equal(blob[:len(magic)], magic) {
		return nil, errors.Wrap(ErrCorrupt, "bad header")
	}
	body, sum := blob[:len(blob)-4], binary.BigEndian.Uint32(blob[len(blob)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, errors.Wrap(ErrCorrupt, "checksum mismatch")
	}
	body = body[len(magic):]
	version, n := protowire.ConsumeVarint(body)
	if n < 0 {
		return nil, errors.Wrap(ErrCorrupt, "bad version")
	}
	if version != FormatVersion {
		return nil, errors.Wrapf(ErrCorrupt, "unsupported format version %d", version)
	}
	sol, err := decodeSolution(body[n:])
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return sol, nil
}

func appendSolution(b []byte, sol *solver.Solution) []byte {
	b = appendString(b, solKey, sol.Key)
	b = appendUint(b, solStreet, uint64(sol.Street))
	b = appendCards(b, solBoard, sol.Board)
	b = appendFloat(b, solPot, sol.Pot)
	b = appendFloat(b, solStack, sol.Stack)
	b = appendUint(b, solIterations, uint64(sol.Iterations))
	b = appendFloat(b, solExploitability, sol.Exploitability)
	for _, w := range sol.Warnings {
		var m []byte
		m = appendUint(m, warnIteration, uint64(w.Iteration))
		m = appendFloat(m, warnPrevious, w.Previous)
		m = appendFloat(m, warnCurrent, w.Current)
		b = appendMessage(b, solWarning, m)
	}
	b = appendCombos(b, solHandsOOP, sol.Hands[0])
	b = appendCombos(b, solHandsIP, sol.Hands[1])
	for _, s := range sol.Streets {
		b = appendMessage(b, solStreets, encodeStreet(s))
	}
	if sol.Buckets != nil {
		b = appendMessage(b, solBuckets, encodeBuckets(sol.Buckets))
	}
	return b
}

func encodeStreet(s *solver.StreetStrategy) []byte {
	var b []byte
	b = appendUint(b, ssStreet, uint64(s.Street))
	b = appendUint(b, ssNumBuckets, uint64(s.NumBuckets))
	b = appendUint(b, ssHandsOOP, uint64(s.NumHands(0)))
	b = appendUint(b, ssHandsIP, uint64(s.NumHands(1)))
	b = appendMessage(b, ssTree, encodeTree(s.Tree))
	b = appendFloat32s(b, ssAvgOOP, s.Average[0])
	b = appendFloat32s(b, ssAvgIP, s.Average[1])
	return b
}

func encodeTree(t *tree.GameTree) []byte {
	var b []byte
	b = appendCards(b, treeBoard, t.Board)
	b = appendFloat(b, treeStartPot, t.StartPot)
	b = appendFloat(b, treeStack, t.Stack)
	var m []byte
	for i := range t.Nodes {
		n := &t.Nodes[i]
		m = m[:0]
		m = appendInt(m, nodeParent, int64(n.Parent))
		m = appendString(m, nodeLabel, n.Label)
		m = appendUint(m, nodeKind, uint64(n.Kind))
		m = appendInt(m, nodePlayer, int64(n.Player))
		m = appendUint(m, nodeStreet, uint64(n.Street))
		m = appendFloat(m, nodePot, n.Pot)
		m = appendFloat(m, nodeInvOOP, n.Invested[0])
		m = appendFloat(m, nodeInvIP, n.Invested[1])
		if n.HasCard {
			m = appendUint(m, nodeCard, uint64(n.Card))
		}
		m = appendUint(m, nodeTerminal, uint64(n.Terminal))
		m = appendInt(m, nodeFolder, int64(n.Folder))
		m = appendUint(m, nodeSlot, uint64(n.Slot))
		b = appendMessage(b, treeNode, m)
	}
	return b
}

func encodeBuckets(bt *solver.BucketTables) []byte {
	var b []byte
	b = appendUint(b, bktNum, uint64(bt.NumBuckets))
	b = appendUint16s(b, bktFlopOOP, bt.Flop[0])
	b = appendUint16s(b, bktFlopIP, bt.Flop[1])
	for _, c := range bt.TurnCards() {
		t := bt.Turn[c]
		var m []byte
		m = appendUint(m, runTurn, uint64(c))
		m = appendUint16s(m, runOOP, t[0])
		m = appendUint16s(m, runIP, t[1])
		b = appendMessage(b, bktTurn, m)
	}
	for _, r := range bt.RiverRunouts() {
		t := bt.River[r]
		var m []byte
		m = appendUint(m, runTurn, uint64(r[0]))
		m = appendUint(m, runRiver, uint64(r[1]))
		m = appendUint16s(m, runOOP, t[0])
		m = appendUint16s(m, runIP, t[1])
		b = appendMessage(b, bktRiver, m)
	}
	return b
}

func decodeSolution(b []byte) (*solver.Solution, error) {
	sol := &solver.Solution{}
	var streets [][]byte
	var buckets []byte
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case solKey:
			sol.Key = string(f.b)
		case solStreet:
			sol.Street = notation.Street(f.u)
		case solBoard:
			sol.Board, err = decodeCards(f.b)
		case solPot:
			sol.Pot = f.float()
		case solStack:
			sol.Stack = f.float()
		case solIterations:
			sol.Iterations = int(f.u)
		case solExploitability:
			sol.Exploitability = f.float()
		case solWarning:
			var w solver.DivergenceWarning
			err = walk(f.b, func(f field) error {
				switch f.num {
				case warnIteration:
					w.Iteration = int(f.u)
				case warnPrevious:
					w.Previous = f.float()
				case warnCurrent:
					w.Current = f.float()
				}
				return nil
			})
			sol.Warnings = append(sol.Warnings, w)
		case solHandsOOP:
			sol.Hands[0], err = decodeCombos(f.b)
		case solHandsIP:
			sol.Hands[1], err = decodeCombos(f.b)
		case solStreets:
			streets = append(streets, f.b)
		case solBuckets:
			buckets = f.b
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(streets) == 0 {
		return nil, errors.New("no street strategies")
	}
	for i, m := range streets {
		s, err := decodeStreet(m)
		if err != nil {
			return nil, errors.Wrapf(err, "street %d", i)
		}
		sol.Streets = append(sol.Streets, s)
	}
	if buckets != nil {
		if sol.Buckets, err = decodeBuckets(buckets); err != nil {
			return nil, errors.Wrap(err, "buckets")
		}
	}
	return sol, nil
}

func decodeStreet(b []byte) (*solver.StreetStrategy, error) {
	var (
		street     notation.Street
		numBuckets int
		hands      [2]int
		treeMsg    []byte
		avg        [2][]float32
	)
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case ssStreet:
			street = notation.Street(f.u)
		case ssNumBuckets:
			numBuckets = int(f.u)
		case ssHandsOOP:
			hands[0] = int(f.u)
		case ssHandsIP:
			hands[1] = int(f.u)
		case ssTree:
			treeMsg = f.b
		case ssAvgOOP:
			avg[0], err = decodeFloat32s(f.b)
		case ssAvgIP:
			avg[1], err = decodeFloat32s(f.b)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if treeMsg == nil {
		return nil, errors.New("missing tree")
	}
	t, err := decodeTree(treeMsg)
	if err != nil {
		return nil, err
	}
	return solver.NewStreetStrategy(street, t, numBuckets, hands, avg)
}

func decodeTree(b []byte) (*tree.GameTree, error) {
	var (
		board           []cards.Card
		startPot, stack float64
		nodes           []tree.Node
	)
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case treeBoard:
			board, err = decodeCards(f.b)
		case treeStartPot:
			startPot = f.float()
		case treeStack:
			stack = f.float()
		case treeNode:
			var n tree.Node
			n, err = decodeNode(f.b)
			n.ID = int32(len(nodes))
			nodes = append(nodes, n)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(nodes); i++ {
		p := nodes[i].Parent
		if p < 0 || int(p) >= i {
			return nil, errors.Errorf("node %d has invalid parent %d", i, p)
		}
		nodes[p].Children = append(nodes[p].Children, int32(i))
	}
	return tree.FromNodes(nodes, board, startPot, stack)
}

func decodeNode(b []byte) (tree.Node, error) {
	n := tree.Node{Parent: tree.NoParent, Player: -1, Folder: -1}
	err := walk(b, func(f field) error {
		switch f.num {
		case nodeParent:
			n.Parent = int32(f.sint())
		case nodeLabel:
			n.Label = string(f.b)
		case nodeKind:
			n.Kind = tree.Kind(f.u)
		case nodePlayer:
			n.Player = int8(f.sint())
		case nodeStreet:
			n.Street = notation.Street(f.u)
		case nodePot:
			n.Pot = f.float()
		case nodeInvOOP:
			n.Invested[0] = f.float()
		case nodeInvIP:
			n.Invested[1] = f.float()
		case nodeCard:
			n.Card = cards.Card(f.u)
			n.HasCard = true
			if !n.Card.Valid() {
				return errors.Errorf("invalid card %d", f.u)
			}
		case nodeTerminal:
			n.Terminal = tree.TerminalKind(f.u)
		case nodeFolder:
			n.Folder = int8(f.sint())
		case nodeSlot:
			n.Slot = int32(f.u)
		}
		return nil
	})
	return n, err
}

func decodeBuckets(b []byte) (*solver.BucketTables, error) {
	bt := &solver.BucketTables{
		Turn:  make(map[cards.Card][2][]uint16),
		River: make(map[[2]cards.Card][2][]uint16),
	}
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case bktNum:
			bt.NumBuckets = int(f.u)
		case bktFlopOOP:
			bt.Flop[0], err = decodeUint16s(f.b)
		case bktFlopIP:
			bt.Flop[1], err = decodeUint16s(f.b)
		case bktTurn:
			var r runoutEntry
			if r, err = decodeRunout(f.b); err == nil {
				bt.Turn[r.turn] = r.tables
			}
		case bktRiver:
			var r runoutEntry
			if r, err = decodeRunout(f.b); err == nil {
				bt.River[[2]cards.Card{r.turn, r.river}] = r.tables
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return bt, nil
}

type runoutEntry struct {
	turn, river cards.Card
	tables      [2][]uint16
}

func decodeRunout(b []byte) (runoutEntry, error) {
	var r runoutEntry
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case runTurn:
			r.turn = cards.Card(f.u)
		case runRiver:
			r.river = cards.Card(f.u)
		case runOOP:
			r.tables[0], err = decodeUint16s(f.b)
		case runIP:
			r.tables[1], err = decodeUint16s(f.b)
		}
		return err
	})
	return r, err
}

// field is one decoded key/value pair. Scalars land in u, length-delimited
// values in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func (f field) float() float64 { return math.Float64frombits(f.u) }

func (f field) sint() int64 { return protowire.DecodeZigZag(f.u) }

// walk calls fn for every field of a message in wire order
func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return errors.Wrapf(err, "field %d", num)
		}
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, protowire.EncodeZigZag(v))
}

func appendFloat(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendCards(b []byte, num protowire.Number, cs []cards.Card) []byte {
	raw := make([]byte, len(cs))
	for i, c := range cs {
		raw[i] = byte(c)
	}
	return appendMessage(b, num, raw)
}

func appendCombos(b []byte, num protowire.Number, cs []cards.Combo) []byte {
	raw := make([]byte, 0, 2*len(cs))
	for _, c := range cs {
		raw = append(raw, byte(c.Hi), byte(c.Lo))
	}
	return appendMessage(b, num, raw)
}

// appendFloat32s writes a packed repeated fixed32 field holding the raw
// float bits
func appendFloat32s(b []byte, num protowire.Number, vs []float32) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(vs)))
	for _, v := range vs {
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	return b
}

func appendUint16s(b []byte, num protowire.Number, vs []uint16) []byte {
	size := 0
	for _, v := range vs {
		size += protowire.SizeVarint(uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(size))
	for _, v := range vs {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

func decodeCards(b []byte) ([]cards.Card, error) {
	out := make([]cards.Card, len(b))
	for i, v := range b {
		out[i] = cards.Card(v)
		if !out[i].Valid() {
			return nil, errors.Errorf("invalid card %d", v)
		}
	}
	return out, nil
}

func decodeCombos(b []byte) ([]cards.Combo, error) {
	if len(b)%2 != 0 {
		return nil, errors.Errorf("combo list has odd length %d", len(b))
	}
	out := make([]cards.Combo, len(b)/2)
	for i := range out {
		hi, lo := cards.Card(b[2*i]), cards.Card(b[2*i+1])
		if !hi.Valid() || !lo.Valid() || hi <= lo {
			return nil, errors.Errorf("invalid combo %d/%d", hi, lo)
		}
		out[i] = cards.Combo{Hi: hi, Lo: lo}
	}
	return out, nil
}

func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.Errorf("packed floats have length %d", len(b))
	}
	out := make([]float32, 0, len(b)/4)
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, math.Float32frombits(v))
		b = b[n:]
	}
	return out, nil
}

func decodeUint16s(b []byte) ([]uint16, error) {
	out := make([]uint16, 0, len(b))
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		if v > math.MaxUint16 {
			return nil, errors.Errorf("bucket %d out of range", v)
		}
		out = append(out, uint16(v))
		b = b[n:]
	}
	return out, nil
}
