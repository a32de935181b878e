package scope

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ftl/ppi/rx"
)

// Frames travel as google.protobuf.Struct messages. The kind field tells the frame types apart.
const (
	kindField      = "kind"
	streamField    = "stream"
	timestampField = "timestamp"

	spectralKind = "spectrum"
	readingKind  = "reading"
)

func encodeFrameHeader(kind string, frame Frame) map[string]*structpb.Value {
	return map[string]*structpb.Value{
		kindField:      structpb.NewStringValue(kind),
		streamField:    structpb.NewStringValue(string(frame.Stream)),
		timestampField: structpb.NewStringValue(frame.Timestamp.UTC().Format(time.RFC3339Nano)),
	}
}

func encodeSpectralFrame(spectralFrame *SpectralFrame) *structpb.Struct {
	fields := encodeFrameHeader(spectralKind, spectralFrame.Frame)

	values := make([]*structpb.Value, len(spectralFrame.Values))
	for i, v := range spectralFrame.Values {
		values[i] = structpb.NewNumberValue(v)
	}
	fields["tick"] = structpb.NewNumberValue(float64(spectralFrame.Tick))
	fields["values"] = structpb.NewListValue(&structpb.ListValue{Values: values})
	fields["peak_bin"] = structpb.NewNumberValue(float64(spectralFrame.PeakBin))
	fields["estimate"] = structpb.NewNumberValue(spectralFrame.Estimate)

	return &structpb.Struct{Fields: fields}
}

func encodeReadingFrame(readingFrame *ReadingFrame) *structpb.Struct {
	fields := encodeFrameHeader(readingKind, readingFrame.Frame)

	fields["seq"] = structpb.NewNumberValue(float64(readingFrame.Reading.Seq))
	fields["tick"] = structpb.NewNumberValue(float64(readingFrame.Reading.Tick))
	fields["bearing"] = structpb.NewNumberValue(readingFrame.Reading.Bearing)
	fields["range"] = structpb.NewNumberValue(readingFrame.Reading.Range)

	return &structpb.Struct{Fields: fields}
}

func readFrameHeader(s *structpb.Struct) (Frame, error) {
	fields := s.GetFields()
	timestamp, err := time.Parse(time.RFC3339Nano, fields[timestampField].GetStringValue())
	if err != nil {
		return Frame{}, fmt.Errorf("invalid frame timestamp: %w", err)
	}
	return Frame{
		Stream:    StreamID(fields[streamField].GetStringValue()),
		Timestamp: timestamp,
	}, nil
}

func readSpectralFrame(s *structpb.Struct) (*SpectralFrame, error) {
	frame, err := readFrameHeader(s)
	if err != nil {
		return nil, err
	}
	fields := s.GetFields()

	rawValues := fields["values"].GetListValue().GetValues()
	result := &SpectralFrame{
		Frame:    frame,
		Tick:     int(fields["tick"].GetNumberValue()),
		Values:   make([]float64, len(rawValues)),
		PeakBin:  int(fields["peak_bin"].GetNumberValue()),
		Estimate: fields["estimate"].GetNumberValue(),
	}
	for i, v := range rawValues {
		result.Values[i] = v.GetNumberValue()
	}
	return result, nil
}

func readReadingFrame(s *structpb.Struct) (*ReadingFrame, error) {
	frame, err := readFrameHeader(s)
	if err != nil {
		return nil, err
	}
	fields := s.GetFields()

	return &ReadingFrame{
		Frame: frame,
		Reading: rx.Reading{
			Seq:       int(fields["seq"].GetNumberValue()),
			Tick:      int(fields["tick"].GetNumberValue()),
			Timestamp: frame.Timestamp,
			Bearing:   fields["bearing"].GetNumberValue(),
			Range:     fields["range"].GetNumberValue(),
		},
	}, nil
}

func frameKind(s *structpb.Struct) string {
	return s.GetFields()[kindField].GetStringValue()
}
