package block

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/tachyon-archive/tachyon/common"
	"github.com/tachyon-archive/tachyon/compress"
	"github.com/tachyon-archive/tachyon/container"
	"github.com/tachyon-archive/tachyon/crypt"
	"github.com/tachyon-archive/tachyon/gt"
	"github.com/tachyon-archive/tachyon/iobuf"
	"github.com/tachyon-archive/tachyon/permute"
)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger attaches a logger to the Writer; defaults to a no-op logger.
// Finalize writes no log entries to it.
func WithLogger(l *zap.Logger) Option { return func(w *Writer) { w.logger = l } }

// WithKeychain attaches the keychain used to encrypt eligible containers.
func WithKeychain(kc *crypt.Keychain) Option { return func(w *Writer) { w.keychain = kc } }

// WithEncryption enables per-container encryption at Finalize (§4.7 step 3).
func WithEncryption(enabled bool) Option { return func(w *Writer) { w.encrypt = enabled } }

// WithPermutation enables building and applying a sample permutation array
// from this block's qualifying diploid-biallelic sites (§4.5, §4.7 step 1).
func WithPermutation(enabled bool) Option { return func(w *Writer) { w.permute = enabled } }

type fieldDict struct {
	globalToLocal map[uint32]int
	globalIDs     []uint32
}

func (d *fieldDict) localID(globalID uint32) int {
	if d.globalToLocal == nil {
		d.globalToLocal = make(map[uint32]int)
	}
	if idx, ok := d.globalToLocal[globalID]; ok {
		return idx
	}
	idx := len(d.globalIDs)
	d.globalIDs = append(d.globalIDs, globalID)
	d.globalToLocal[globalID] = idx
	return idx
}

// Writer accumulates Records for one contig-contiguous block and seals them
// into a Sealed block on Finalize (§4.7, §4.8).
type Writer struct {
	contigID uint32
	records  []*Record

	logger   *zap.Logger
	keychain *crypt.Keychain
	encrypt  bool
	permute  bool
}

// NewWriter returns an empty Writer for blocks on contigID.
func NewWriter(contigID uint32, opts ...Option) *Writer {
	w := &Writer{contigID: contigID, logger: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Append validates and buffers one record (§4.7 "operator+=(record)"). The
// writer buffers the whole block in memory; all stream assembly happens in
// Finalize once the sample permutation (if any) is known.
func (w *Writer) Append(rec *Record) error {
	if rec.ContigID != w.contigID {
		return fmt.Errorf("%w: record contig %d does not match block contig %d",
			common.ErrFormat, rec.ContigID, w.contigID)
	}
	if n := len(w.records); n > 0 && rec.Position < w.records[n-1].Position {
		return fmt.Errorf("%w: records must be appended in non-decreasing position order",
			common.ErrFormat)
	}
	w.records = append(w.records, rec)
	return nil
}

// NVariants returns the number of records buffered so far.
func (w *Writer) NVariants() int { return len(w.records) }

// Positions returns the position of every record buffered so far, in
// append order, for a caller (the archive writer) that indexes each record
// individually rather than the block's aggregate span.
func (w *Writer) Positions() []int64 {
	pos := make([]int64, len(w.records))
	for i, rec := range w.records {
		pos[i] = rec.Position
	}
	return pos
}

func sampleCount(rec *Record) int {
	if rec.GT == nil || rec.GT.Ploidy == 0 {
		return 0
	}
	return len(rec.GT.Alleles) / rec.GT.Ploidy
}

// buildPPA computes the block-wide permutation array from every qualifying
// diploid-biallelic record (§4.5), or the identity order if permutation is
// disabled or no record qualifies.
func (w *Writer) buildPPA(nSamples int) (ppa []uint32, applied bool) {
	identity := make([]uint32, nSamples)
	for i := range identity {
		identity[i] = uint32(i)
	}
	if !w.permute || nSamples == 0 {
		return identity, false
	}

	var sites []permute.Site
	for _, rec := range w.records {
		if rec.GT == nil || rec.GT.Ploidy != 2 {
			continue
		}
		nAllele := 1 + len(rec.Alts)
		hasEOV := false
		for _, a := range rec.GT.Alleles {
			if a == gt.SourceEOV {
				hasEOV = true
				break
			}
		}
		if !permute.Qualifies(rec.GT.Ploidy, nAllele, hasEOV) {
			continue
		}
		a := make([]permute.AlleleValue, nSamples)
		b := make([]permute.AlleleValue, nSamples)
		for s := 0; s < nSamples; s++ {
			a[s] = toAlleleValue(rec.GT.Alleles[s*2])
			b[s] = toAlleleValue(rec.GT.Alleles[s*2+1])
		}
		sites = append(sites, permute.Site{AlleleA: a, AlleleB: b})
	}
	if len(sites) == 0 {
		return identity, false
	}
	built := permute.Build(nSamples, sites)
	return built, true
}

func toAlleleValue(a int32) permute.AlleleValue {
	switch a {
	case gt.SourceMissing:
		return permute.AlleleMissing
	case 0:
		return permute.AlleleRef
	default:
		return permute.AlleleAlt
	}
}

// Sealed is a finalized block, ready to be serialized to an archive.
type Sealed struct {
	Header Header
	Footer *Footer
	bytes  []byte // header || streams || footer || eof marker, fully serialized
}

// Bytes returns the full serialized block.
func (s *Sealed) Bytes() []byte { return s.bytes }

// BlockEOFMarker is the fixed trailer after every block's footer (§6
// "variant block ... || u64 block_eof_marker").
const BlockEOFMarker uint64 = 0x454F4201594F4E00

// Finalize seals the buffered records into streams (§4.7 steps 1-5):
// UpdateContainer on every stream, pattern bit-vectors, optional encryption,
// offset computation, then full serialization.
func (w *Writer) Finalize() (*Sealed, error) {
	nVariants := len(w.records)
	nSamples := 0
	for _, rec := range w.records {
		if n := sampleCount(rec); n > 0 {
			nSamples = n
			break
		}
	}
	if nSamples == 0 {
		for _, rec := range w.records {
			if len(rec.Format) > 0 {
				nSamples = len(rec.Format[0].PerSampleInts) + len(rec.Format[0].PerSampleFloats)
				break
			}
		}
	}

	ppa, ppaApplied := w.buildPPA(nSamples)

	base := make([]*container.Container, nBaseStreams)
	for i := range base {
		base[i] = container.New(0)
	}

	var infoDict, formatDict, filterDict fieldDict
	var infoStreams, formatStreams []*container.Container
	infoPatterns := newPatternSet()
	formatPatterns := newPatternSet()
	filterPatterns := newPatternSet()

	var minPos, maxPos int64
	anyGT := false

	for i, rec := range w.records {
		if i == 0 || rec.Position < minPos {
			minPos = rec.Position
		}
		if i == 0 || rec.Position > maxPos {
			maxPos = rec.Position
		}

		if err := base[StreamContig].Add(int32(rec.ContigID)); err != nil {
			return nil, err
		}
		if err := base[StreamPosition].Add(int32(rec.Position)); err != nil {
			return nil, err
		}
		if rec.HasQual {
			if err := base[StreamQuality].AddFloat32(rec.Qual); err != nil {
				return nil, err
			}
		} else {
			if err := base[StreamQuality].AddFloat32(qualMissing); err != nil {
				return nil, err
			}
		}
		if err := base[StreamNames].AddBytes([]byte(rec.Name)); err != nil {
			return nil, err
		}
		if err := base[StreamNames].AddStride(int32(len(rec.Name))); err != nil {
			return nil, err
		}

		nAllele := 1 + len(rec.Alts)
		refCode, altCode, packable := packableAlleles(rec.Ref, rec.Alts)
		allelesPacked := packable
		if allelesPacked {
			if err := base[StreamRefAlt].AddBytes([]byte{packRefAlt(refCode, altCode)}); err != nil {
				return nil, err
			}
		} else {
			w2 := iobuf.NewWriter(32)
			allAlleles := append([]string{rec.Ref}, rec.Alts...)
			for _, al := range allAlleles {
				w2.WriteUint16(uint16(len(al)))
				w2.WriteBytes([]byte(al))
			}
			if err := base[StreamAlleles].AddBytes(w2.Bytes()); err != nil {
				return nil, err
			}
			if err := base[StreamAlleles].AddStride(int32(len(allAlleles))); err != nil {
				return nil, err
			}
		}

		filterLocalIDs := make([]int, len(rec.FilterGlobalIDs))
		for j, gid := range rec.FilterGlobalIDs {
			filterLocalIDs[j] = filterDict.localID(gid)
		}
		filterPatIdx := addPattern(filterPatterns, filterLocalIDs, len(filterDict.globalIDs))
		if err := base[StreamIDFilter].Add(int32(filterPatIdx)); err != nil {
			return nil, err
		}

		infoLocalIDs := make([]int, len(rec.Info))
		for j, f := range rec.Info {
			localIdx := infoDict.localID(f.GlobalID)
			infoLocalIDs[j] = localIdx
			for len(infoStreams) <= localIdx {
				infoStreams = append(infoStreams, container.New(0))
			}
			if err := appendInfoField(infoStreams[localIdx], f); err != nil {
				return nil, fmt.Errorf("block: info field %d: %w", f.GlobalID, err)
			}
		}
		infoPatIdx := addPattern(infoPatterns, infoLocalIDs, len(infoDict.globalIDs))
		if err := base[StreamIDInfo].Add(int32(infoPatIdx)); err != nil {
			return nil, err
		}

		formatLocalIDs := make([]int, len(rec.Format))
		for j, f := range rec.Format {
			localIdx := formatDict.localID(f.GlobalID)
			formatLocalIDs[j] = localIdx
			for len(formatStreams) <= localIdx {
				formatStreams = append(formatStreams, container.New(0))
			}
			if err := appendFormatField(formatStreams[localIdx], f); err != nil {
				return nil, fmt.Errorf("block: format field %d: %w", f.GlobalID, err)
			}
		}
		formatPatIdx := addPattern(formatPatterns, formatLocalIDs, len(formatDict.globalIDs))
		if err := base[StreamIDFormat].Add(int32(formatPatIdx)); err != nil {
			return nil, err
		}

		ctrl := Controller{
			Biallelic: nAllele == 2,
			Diploid:   rec.GT != nil && rec.GT.Ploidy == 2,
			SimpleSNV: nAllele == 2 && len(rec.Ref) == 1 && len(rec.Alts) == 1 && len(rec.Alts[0]) == 1,
			AllSNV:    allSingleBase(rec.Ref, rec.Alts),
		}
		ctrl.AllelesPacked = allelesPacked

		if rec.GT != nil {
			anyGT = true
			ploidy := rec.GT.Ploidy
			if err := base[StreamGTPloidy].Add(int32(ploidy)); err != nil {
				return nil, err
			}
			samples, mixedPhase, hasMissing := buildSamples(rec.GT, nSamples, ppa, ppaApplied)
			enc, err := gt.Encode(samples, ploidy, nAllele, !mixedPhase && samplesPhased(samples))
			if err != nil {
				return nil, fmt.Errorf("block: genotype encode: %w", err)
			}
			stream := gtStreamFor(enc.Method, enc.Word)
			if err := base[stream].AddLiteral(enc.Bytes); err != nil {
				return nil, err
			}
			sup := gtSupport{
				Method:      enc.Method,
				Word:        enc.Word,
				MixedPhase:  enc.MixedPhase,
				GlobalPhase: enc.GlobalPhase,
				Shift:       enc.Shift,
				NRuns:       enc.NRuns,
			}
			if err := base[StreamGTSupport].Add(sup.pack()); err != nil {
				return nil, err
			}
			ctrl.GTAvailable = true
			ctrl.GTHasMissing = hasMissing
			ctrl.GTHasMixedPhasing = enc.MixedPhase
			ctrl.GTPhaseUniform = !enc.MixedPhase
			ctrl.GTCompressionType = uint8(enc.Method - 1)
			ctrl.GTPrimitiveType = uint8(enc.Word)
			ctrl.GTMixedPloidy = ploidy != 2
		} else {
			if err := base[StreamGTPloidy].Add(0); err != nil {
				return nil, err
			}
			if err := base[StreamGTSupport].Add(0); err != nil {
				return nil, err
			}
		}

		if err := base[StreamController].Add(int32(ctrl.Pack())); err != nil {
			return nil, err
		}
	}

	var ppaContainer *container.Container
	if ppaApplied {
		var err error
		ppaContainer, err = buildPPAContainer(ppa)
		if err != nil {
			return nil, err
		}
	}

	for _, c := range base {
		if err := c.UpdateContainer(true, true); err != nil {
			return nil, err
		}
		if err := compress.Apply(c); err != nil {
			return nil, err
		}
	}
	for _, c := range infoStreams {
		if err := c.UpdateContainer(true, true); err != nil {
			return nil, err
		}
		if err := compress.Apply(c); err != nil {
			return nil, err
		}
	}
	for _, c := range formatStreams {
		if err := c.UpdateContainer(true, true); err != nil {
			return nil, err
		}
		if err := compress.Apply(c); err != nil {
			return nil, err
		}
	}

	anyEncrypted := false
	if w.encrypt && w.keychain != nil {
		anyEncrypted = true
		encryptAllExcept(w.keychain, base)
		for _, c := range infoStreams {
			if err := crypt.EncryptContainer(w.keychain, c); err != nil {
				return nil, err
			}
		}
		for _, c := range formatStreams {
			if err := crypt.EncryptContainer(w.keychain, c); err != nil {
				return nil, err
			}
		}
	}

	footer := &Footer{
		InfoDict:       infoDict.globalIDs,
		FormatDict:     formatDict.globalIDs,
		FilterDict:     filterDict.globalIDs,
		InfoPatterns:   infoPatterns,
		FormatPatterns: formatPatterns,
		FilterPatterns: filterPatterns,
	}

	var streamBufs [][]byte
	if ppaApplied {
		buf, err := renderStream(ppaContainer)
		if err != nil {
			return nil, err
		}
		streamBufs = append(streamBufs, buf)
	}
	for _, c := range base {
		buf, err := renderStream(c)
		if err != nil {
			return nil, err
		}
		streamBufs = append(streamBufs, buf)
	}
	for _, c := range infoStreams {
		buf, err := renderStream(c)
		if err != nil {
			return nil, err
		}
		streamBufs = append(streamBufs, buf)
	}
	for _, c := range formatStreams {
		buf, err := renderStream(c)
		if err != nil {
			return nil, err
		}
		streamBufs = append(streamBufs, buf)
	}

	offsets := make([]uint64, len(streamBufs))
	var cursor uint64
	for i, b := range streamBufs {
		offsets[i] = cursor
		cursor += uint64(len(b))
	}
	footer.StreamOffsets = offsets

	header := Header{
		ContigID:      w.contigID,
		MinPos:        minPos,
		MaxPos:        maxPos,
		NVariants:     int32(nVariants),
		NSamples:      int32(nSamples),
		HasGT:         anyGT,
		HasGTPermuted: ppaApplied,
		AnyEncrypted:  anyEncrypted,
	}
	hash, err := common.RandUint64()
	if err != nil {
		return nil, err
	}
	header.BlockHash = hash
	header.OffsetToFooter = cursor

	out := iobuf.NewWriter(int(cursor) + 256)
	header.WriteTo(out)
	for _, b := range streamBufs {
		out.WriteBytes(b)
	}
	if err := footer.WriteTo(out); err != nil {
		return nil, err
	}
	out.WriteUint64(BlockEOFMarker)

	return &Sealed{Header: header, Footer: footer, bytes: out.Bytes()}, nil
}

// qualMissing is the IEEE-754 quiet-NaN QUAL stores for a record with no
// quality score (§6 "QUAL: missing represented as NaN").
var qualMissing = math.Float32frombits(0x7FC00000)

func renderStream(c *container.Container) ([]byte, error) {
	w := iobuf.NewWriter(len(c.Data) + len(c.Stride) + 64)
	c.SerializeMeta(w)
	w.WriteBytes(c.Data)
	w.WriteBytes(c.Stride)
	return w.Bytes(), nil
}

// allSingleBase reports whether ref and every alt are exactly one base long,
// regardless of allele count (Controller.AllSNV, distinct from the
// two-allele-only SimpleSNV bit).
func allSingleBase(ref string, alts []string) bool {
	if len(ref) != 1 {
		return false
	}
	for _, a := range alts {
		if len(a) != 1 {
			return false
		}
	}
	return true
}

func addPattern(ps *PatternSet, localIDsInt []int, nFields int) int {
	sorted := append([]int(nil), localIDsInt...)
	sort.Ints(sorted)
	ids := make([]uint32, len(sorted))
	for i, v := range sorted {
		ids[i] = uint32(v)
	}
	return ps.Add(ids, nFields)
}

func appendInfoField(c *container.Container, f InfoField) error {
	switch {
	case f.Ints != nil:
		for _, v := range f.Ints {
			if err := c.Add(v); err != nil {
				return err
			}
		}
		return c.AddStride(int32(len(f.Ints)))
	case f.Floats != nil:
		for _, v := range f.Floats {
			if err := c.AddFloat32(v); err != nil {
				return err
			}
		}
		return c.AddStride(int32(len(f.Floats)))
	default:
		if err := c.AddBytes(f.Raw); err != nil {
			return err
		}
		return c.AddStride(int32(len(f.Raw)))
	}
}

func appendFormatField(c *container.Container, f FormatField) error {
	switch {
	case f.PerSampleInts != nil:
		for _, values := range f.PerSampleInts {
			for _, v := range values {
				if err := c.Add(v); err != nil {
					return err
				}
			}
			if err := c.AddStride(int32(len(values))); err != nil {
				return err
			}
		}
	case f.PerSampleFloats != nil:
		for _, values := range f.PerSampleFloats {
			for _, v := range values {
				if err := c.AddFloat32(v); err != nil {
					return err
				}
			}
			if err := c.AddStride(int32(len(values))); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildSamples assembles the gt.Sample slice for one record in storage
// order (permuted, if ppaApplied), reporting whether any sample's alleles
// were MISSING and whether phasing is mixed.
func buildSamples(g *Genotype, nSamples int, ppa []uint32, ppaApplied bool) (samples []gt.Sample, mixedPhase, hasMissing bool) {
	samples = make([]gt.Sample, nSamples)
	for i := 0; i < nSamples; i++ {
		src := i
		if ppaApplied && g.Ploidy == 2 {
			src = int(ppa[i])
		}
		alleles := make([]gt.Allele, g.Ploidy)
		for p := 0; p < g.Ploidy; p++ {
			a := g.Alleles[src*g.Ploidy+p]
			alleles[p] = a
			if a == gt.SourceMissing {
				hasMissing = true
			}
		}
		phase := false
		if src < len(g.Phased) {
			phase = g.Phased[src]
		}
		samples[i] = gt.Sample{Alleles: alleles, Phase: phase}
	}
	if len(samples) > 0 {
		first := samples[0].Phase
		for _, s := range samples[1:] {
			if s.Phase != first {
				mixedPhase = true
				break
			}
		}
	}
	return samples, mixedPhase, hasMissing
}

func samplesPhased(samples []gt.Sample) bool {
	if len(samples) == 0 {
		return true
	}
	first := samples[0].Phase
	return first
}

func buildPPAContainer(ppa []uint32) (*container.Container, error) {
	w := iobuf.NewWriter(len(ppa) * 4)
	for _, v := range ppa {
		w.WriteUint32(v)
	}
	raw := w.Bytes()

	c := container.New(0)
	if len(raw)%32 == 0 {
		transposed, err := compress.Transpose(raw)
		if err != nil {
			return nil, err
		}
		raw = transposed
	}
	if err := c.AddBytes(raw); err != nil {
		return nil, err
	}
	if err := c.UpdateContainer(false, false); err != nil {
		return nil, err
	}
	if err := compress.Apply(c); err != nil {
		return nil, err
	}
	return c, nil
}

// encryptAllExcept encrypts every base stream except PPA (handled
// separately by the caller when present), CONTROLLER and REFALT (§4.7 step
// 3 "skip PPA, CONTROLLER, REFALT which are tiny").
func encryptAllExcept(kc *crypt.Keychain, base []*container.Container) {
	for i, c := range base {
		s := BaseStream(i)
		if s == StreamController || s == StreamRefAlt {
			continue
		}
		_ = crypt.EncryptContainer(kc, c)
	}
}
