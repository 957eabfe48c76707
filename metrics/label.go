package metrics

import "go.opentelemetry.io/otel/attribute"

// Label 指标标签
type Label struct {
	Key   string
	Value string
}

// L 创建一个标签，是 Label{Key: k, Value: v} 的简写
func L(k, v string) Label {
	return Label{Key: k, Value: v}
}

func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	return attrs
}
