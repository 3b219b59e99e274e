// Package expire は契約書の有効期限切れ遷移ジョブを提供する。
// 期限を過ぎたpending契約書を定期的にexpiredへ遷移させる。
package expire

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/pactman/internal/metrics"
)

// ContractExpirer は期限切れ遷移の実行インターフェース。
// contract.Service の部分集合として定義する。
type ContractExpirer interface {
	// ExpireDue は期限を過ぎたpending契約書をexpiredへ遷移させ、件数を返す。
	ExpireDue(ctx context.Context) (int, error)
}

// Sweeper は有効期限切れ契約書の定期スイープを行う。
// 条件付きUPDATEによる遷移なので複数インスタンスで動かしても二重処理は起きない。
type Sweeper struct {
	expirer   ContractExpirer
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
// collectorはnil可（計測無効時）。
func NewSweeper(expirer ContractExpirer, logger *slog.Logger, collector metrics.MetricsCollector) *Sweeper {
	return &Sweeper{
		expirer:   expirer,
		logger:    logger,
		collector: collector,
	}
}

// Start は指定間隔のティッカーでスイープを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("期限切れスイープを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("期限切れスイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("期限切れスイープを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("期限切れスイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限切れ遷移を1回実行する。
// 遷移対象がない場合でもエラーにならない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	// エラー時でも遷移済みの件数は返ってくるため、先に計測へ反映する
	count, err := s.expirer.ExpireDue(ctx)
	if count > 0 && s.collector != nil {
		s.collector.RecordContractExpired(count)
	}
	if err != nil {
		return err
	}

	s.logger.Info("期限切れスイープが完了しました",
		slog.Int("expired_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
