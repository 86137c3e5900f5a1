package indengine

import (
	"context"
	"log/slog"
	"time"

	"candle-featuresv1/internal/model"
)

// processLoop feeds klines through the engine. Final klines update state
// and are forwarded to barCh when set; forming klines produce throttled
// previews.
func (svc *Service) processLoop(ctx context.Context, klineCh <-chan model.Kline, barCh chan<- model.Kline) {
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-klineCh:
			if !ok {
				return
			}
			svc.handle(k, barCh)
		}
	}
}

func (svc *Service) handle(k model.Kline, barCh chan<- model.Kline) {
	if !svc.throttle.allow(k) {
		return
	}

	start := time.Now()
	svc.mu.Lock()
	var results []model.IndicatorResult
	if k.Final {
		results = svc.engine.Process(k)
	} else {
		results = svc.engine.ProcessPeek(k)
	}
	svc.mu.Unlock()
	elapsed := time.Since(start)

	if m := svc.deps.Metrics; m != nil {
		m.IndicatorComputeDur.Observe(elapsed.Seconds())
		m.IndicatorsTotal.Add(float64(len(results)))
	}
	if k.Final {
		svc.deps.Health.SetLastBarTime(time.UnixMilli(k.Timestamp))
		if barCh != nil {
			select {
			case barCh <- k:
			default:
				slog.Warn("bar store backlog full, dropping bar", "market", k.Key(), "ts", k.Timestamp)
			}
		}
	}

	svc.publish(results)
}
