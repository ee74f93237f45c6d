package metrics

import "github.com/prometheus/client_golang/prometheus"

// Dice agrupa os contadores do jogo; prefix diferencia os serviços (dice_api, dice_resolver)
type Dice struct {
	Placed      prometheus.Counter
	Resolved    *prometheus.CounterVec // result=win|loss
	Refunded    prometheus.Counter
	Errors      *prometheus.CounterVec // stage
	Consumed    prometheus.Counter
	Retried     prometheus.Counter
	DeadLetters prometheus.Counter
	BeaconTip   prometheus.Gauge
}

func NewDice(reg prometheus.Registerer, prefix string) *Dice {
	d := &Dice{
		Placed:      prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_bets_placed_total", Help: "apostas criadas"}),
		Resolved:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: prefix + "_bets_resolved_total", Help: "apostas resolvidas por resultado"}, []string{"result"}),
		Refunded:    prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_bets_refunded_total", Help: "apostas reembolsadas por timeout"}),
		Errors:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: prefix + "_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		Consumed:    prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_messages_consumed_total", Help: "mensagens consumidas"}),
		Retried:     prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_resolve_retries_total", Help: "retentativas por beacon indisponível"}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_dlq_total", Help: "mensagens enviadas para a DLQ"}),
		BeaconTip:   prometheus.NewGauge(prometheus.GaugeOpts{Name: prefix + "_beacon_tip_slot", Help: "último slot com beacon publicado"}),
	}
	reg.MustRegister(d.Placed, d.Resolved, d.Refunded, d.Errors, d.Consumed, d.Retried, d.DeadLetters, d.BeaconTip)
	return d
}

// callbacks prontas para os campos On* do engine e do processor
func (d *Dice) OnPlaced() { d.Placed.Inc() }
func (d *Dice) OnRefunded() { d.Refunded.Inc() }
func (d *Dice) OnError(stage string) { d.Errors.WithLabelValues(stage).Inc() }
func (d *Dice) OnConsumed() { d.Consumed.Inc() }
func (d *Dice) OnRetry() { d.Retried.Inc() }
func (d *Dice) OnDeadLetter() { d.DeadLetters.Inc() }

func (d *Dice) OnResolved(win bool) {
	result := "loss"
	if win {
		result = "win"
	}
	d.Resolved.WithLabelValues(result).Inc()
}
