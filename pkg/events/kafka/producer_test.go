package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mwinters/gfs-windcache/internal/core/model"
)

func TestProducer_Publish_SendsJSONKeyedByBaseKey(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got model.RefreshEvent
		if err := json.Unmarshal(val, &got); err != nil {
			t.Fatalf("unmarshal published value: %v", err)
		}
		if got.BaseKey != model.WindPointsKey || got.Index != 3 {
			t.Fatalf("unexpected event payload: %+v", got)
		}
		return nil
	})

	p := &Producer{sp: mp, topic: "wind-refresh"}
	ev := model.RefreshEvent{
		BaseKey:        model.WindPointsKey,
		Index:          3,
		RunName:        "20260730_06Z",
		ForecastOffset: 0,
		RunAge:         0,
		Timestamp:      time.Now().UTC(),
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestProducer_Publish_PropagatesSendError(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &Producer{sp: mp, topic: "wind-refresh"}
	err := p.Publish(context.Background(), model.RefreshEvent{BaseKey: model.WindPointsKey})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}
