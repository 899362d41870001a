package metrics

import (
	"github.com/layer-3/walletbridge/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records bridge activity as Prometheus counters
type Prometheus struct {
	signIns         *prometheus.CounterVec
	accountsCreated prometheus.Counter
	exchanges       *prometheus.CounterVec
}

// NewPrometheus creates the walletbridge collectors and registers them with reg
func NewPrometheus(reg prometheus.Registerer) (ports.MetricsRecorder, error) {
	p := &Prometheus{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletbridge",
			Name:      "sign_ins_total",
			Help:      "Wallet sign-in attempts by outcome.",
		}, []string{"outcome"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletbridge",
			Name:      "accounts_created_total",
			Help:      "Accounts created on a wallet's first sign-in.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletbridge",
			Name:      "session_exchanges_total",
			Help:      "Login credential exchanges by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{p.signIns, p.accountsCreated, p.exchanges} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) SignIn(outcome string) {
	p.signIns.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AccountCreated() {
	p.accountsCreated.Inc()
}

func (p *Prometheus) SessionExchange(outcome string) {
	p.exchanges.WithLabelValues(outcome).Inc()
}
