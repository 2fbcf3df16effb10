package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_commands_total",
			Help: "Commands handled by the lifecycle manager",
		},
		[]string{"op", "mode"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_rejections_total",
			Help: "Actions refused by the state machine",
		},
		[]string{"code"},
	)
	TimerFires = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_timer_fires_total",
			Help: "Phase timer fires, split by whether they applied or were stale",
		},
		[]string{"result"},
	)
	ActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_active_rooms",
			Help: "Rooms currently present in the store",
		},
	)
	ReapedRooms = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "game_reaped_rooms_total",
			Help: "Idle rooms force-ended by the reaper",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(RejectionsTotal)
	prometheus.MustRegister(TimerFires)
	prometheus.MustRegister(ActiveRooms)
	prometheus.MustRegister(ReapedRooms)
}
