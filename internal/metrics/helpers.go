package metrics

import (
	"strconv"
	"time"
)

// Metric names recorded per evaluation
const (
	MetricEvaluationSeconds = "evaluation_seconds"
	MetricFitness           = "fitness"
	MetricEvaluationErrors  = "evaluation_errors"
	MetricRepairs           = "repairs"
	MetricTrainingTime      = "training_time"
)

// SpaceLabels labels a metric with its search space
func SpaceLabels(searchSpace int) map[string]string {
	return map[string]string{"search_space": strconv.Itoa(searchSpace)}
}

// RecordEvaluation records the metrics for one fitness evaluation.
// Fitness and training time are only recorded for successful evaluations.
func RecordEvaluation(c *Collector, searchSpace int, elapsed time.Duration, fitness, trainingTime float64, repaired, failed bool) {
	if c == nil {
		return
	}
	now := time.Now()
	labels := SpaceLabels(searchSpace)
	c.Record(MetricEvaluationSeconds, elapsed.Seconds(), now, labels)
	if repaired {
		c.Record(MetricRepairs, 1, now, labels)
	}
	if failed {
		c.Record(MetricEvaluationErrors, 1, now, labels)
		return
	}
	c.Record(MetricFitness, fitness, now, labels)
	if trainingTime > 0 {
		c.Record(MetricTrainingTime, trainingTime, now, labels)
	}
}
