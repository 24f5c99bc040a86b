package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format 快照编码格式
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatProto   Format = "proto"
)

var ErrUnknownFormat = errors.New("unknown snapshot format")

// ParseFormat 解析查询参数中的格式，空字符串默认 JSON
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack, FormatProto:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Binary JSON 以外的格式走二进制帧
func (f Format) Binary() bool { return f != FormatJSON }

// ContentType HTTP 响应类型
func (f Format) ContentType() string {
	switch f {
	case FormatMsgpack:
		return "application/msgpack"
	case FormatProto:
		return "application/x-protobuf"
	default:
		return "application/json"
	}
}

// EncodeSnapshot 按格式序列化快照
func EncodeSnapshot(snap Snapshot, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(snap)
	case FormatMsgpack:
		b, err := msgpack.Marshal(&snap)
		if err != nil {
			return nil, fmt.Errorf("msgpack snapshot: %w", err)
		}
		return b, nil
	case FormatProto:
		st, err := snapshotStruct(snap)
		if err != nil {
			return nil, err
		}
		b, err := proto.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("proto snapshot: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// DecodeSnapshot 反序列化快照（用于测试与远端渲染）
func DecodeSnapshot(b []byte, f Format) (Snapshot, error) {
	var snap Snapshot
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(b, &snap); err != nil {
			return snap, fmt.Errorf("json snapshot: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.Unmarshal(b, &snap); err != nil {
			return snap, fmt.Errorf("msgpack snapshot: %w", err)
		}
	case FormatProto:
		var st structpb.Struct
		if err := proto.Unmarshal(b, &st); err != nil {
			return snap, fmt.Errorf("proto snapshot: %w", err)
		}
		raw, err := st.MarshalJSON()
		if err != nil {
			return snap, fmt.Errorf("proto snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap); err != nil {
			return snap, fmt.Errorf("proto snapshot: %w", err)
		}
	default:
		return snap, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return snap, nil
}

// snapshotStruct 经由 JSON 形态转换为 structpb.Struct
func snapshotStruct(snap Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("proto snapshot: %w", err)
	}
	var st structpb.Struct
	if err := st.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("proto snapshot: %w", err)
	}
	return &st, nil
}
