package export

import "github.com/heimdex/heimdex-clipper/internal/media"

// CodecPolicy is what ffmpeg is told to do for one segment.
type CodecPolicy struct {
	VideoCodec  string
	AudioCodec  string
	BitrateKbps int
}

// StreamCopy reports whether the segment is remuxed without re-encoding.
func (p CodecPolicy) StreamCopy() bool {
	return p.VideoCodec == media.CodecCopy && p.AudioCodec == media.CodecCopy
}

type policyKey struct {
	format      Format
	quality     Quality
	sourceIsMP4 bool
}

type codecPair struct{ video, audio string }

var formatCodecs = map[Format]codecPair{
	FormatMP4:  {"libx264", "aac"},
	FormatMOV:  {"libx264", "aac"},
	FormatMKV:  {"libx264", "aac"},
	FormatAVI:  {"libx264", "libmp3lame"},
	FormatWebM: {"libvpx-vp9", "libopus"},
}

var policies = buildPolicies()

// buildPolicies expands formatCodecs over every quality and source kind,
// then overrides the single stream-copy case.
func buildPolicies() map[policyKey]CodecPolicy {
	table := make(map[policyKey]CodecPolicy)
	for format, codecs := range formatCodecs {
		for q, kbps := range qualityKbps {
			for _, srcMP4 := range []bool{false, true} {
				table[policyKey{format, q, srcMP4}] = CodecPolicy{
					VideoCodec:  codecs.video,
					AudioCodec:  codecs.audio,
					BitrateKbps: kbps,
				}
			}
		}
	}
	table[policyKey{FormatMP4, QualityHigh, true}] = CodecPolicy{
		VideoCodec: media.CodecCopy,
		AudioCodec: media.CodecCopy,
	}
	return table
}

// LookupPolicy returns the codec policy for a target and a source
// extension ("mp4", ".MP4" and "" are all accepted).
func LookupPolicy(format Format, quality Quality, sourceExt string) (CodecPolicy, bool) {
	p, ok := policies[policyKey{format, quality, normalizeExt(sourceExt) == "mp4"}]
	return p, ok
}
