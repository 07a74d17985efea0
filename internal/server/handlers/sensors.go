package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecoguard/ecoguard/internal/core/validate"
	apperrors "github.com/ecoguard/ecoguard/internal/errors"
	"github.com/ecoguard/ecoguard/internal/metrics"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/server/middleware"
)

// Reading buffer sizing.
const (
	DefaultReadingCapacity = 1000
	DefaultReadingPage     = 50
)

// SensorReading is an accepted air-quality measurement.
type SensorReading struct {
	ID          string    `json:"id"`
	SensorID    string    `json:"sensor_id,omitempty"`
	Location    string    `json:"location,omitempty"`
	AQI         float64   `json:"aqi"`
	PM25        float64   `json:"pm25"`
	PM10        float64   `json:"pm10"`
	CO2         float64   `json:"co2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ReadingList is the GET response body.
type ReadingList struct {
	Readings []SensorReading `json:"readings"`
	Count    int             `json:"count"`
}

// SensorHandler accepts readings into a bounded in-memory buffer.
type SensorHandler struct {
	readings *RingBuffer[SensorReading]
	now      func() time.Time
}

// NewSensorHandler creates a handler retaining up to capacity readings.
func NewSensorHandler(capacity int) *SensorHandler {
	if capacity <= 0 {
		capacity = DefaultReadingCapacity
	}
	return &SensorHandler{
		readings: NewRingBuffer[SensorReading](capacity),
		now:      time.Now,
	}
}

// Create handles POST /api/sensors/readings.
func (h *SensorHandler) Create(w http.ResponseWriter, r *http.Request) {
	data, err := decodeJSONObject(w, r)
	if err != nil {
		respondInvalidJSON(w, r, err)
		return
	}

	if !middleware.ValidateRequestData(w, r, data, validate.SensorRules()) {
		return
	}
	if !validate.IsValidSensorData(data) {
		middleware.RejectInvalid(w, r, []string{"sensor reading is out of range"})
		return
	}

	var violations []string
	sensorID := validate.ReadingSensorID.Read(data, &violations)
	location := validate.ReadingLocation.Read(data, &violations)
	if len(violations) > 0 {
		middleware.RejectInvalid(w, r, violations)
		return
	}

	reading := SensorReading{
		ID:          uuid.NewString(),
		SensorID:    sensorID,
		Location:    location,
		AQI:         numberField(data, "aqi"),
		PM25:        numberField(data, "pm25"),
		PM10:        numberField(data, "pm10"),
		CO2:         numberField(data, "co2"),
		Temperature: numberField(data, "temperature"),
		Humidity:    numberField(data, "humidity"),
		ReceivedAt:  h.now().UTC(),
	}
	h.readings.Add(reading)
	metrics.RecordOperation("sensor_reading_accepted", true)

	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Sensor reading accepted",
			zap.String("reading_id", reading.ID),
			zap.String("sensor_id", reading.SensorID),
			zap.Float64("aqi", reading.AQI),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}

	writeJSON(w, http.StatusCreated, reading)
}

// List handles GET /api/sensors/readings, newest first.
func (h *SensorHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := pageLimit(r, DefaultReadingPage, h.readings.Cap())
	if !ok {
		respondWithError(w, r, apperrors.NewInvalidInputError(limitError(h.readings.Cap())))
		return
	}

	readings := h.readings.Latest(limit)
	writeJSON(w, http.StatusOK, ReadingList{Readings: readings, Count: len(readings)})
}

// Len returns the number of buffered readings.
func (h *SensorHandler) Len() int {
	return h.readings.Len()
}

func numberField(data map[string]any, field string) float64 {
	n, _ := validate.Number(data[field])
	return n
}
