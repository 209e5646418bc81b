package model

import (
	"github.com/croplogic/irrigo/internal/model/entities"
	"github.com/croplogic/irrigo/internal/model/messages"
)

// Aliases for the types services pass around most.

type (
	Field              = entities.Field
	Sensor             = entities.Sensor
	GrowthState        = entities.GrowthState
	WaterBalanceState  = entities.WaterBalanceState
	IrrigationDecision = entities.IrrigationDecision
	DecisionPolicy     = entities.DecisionPolicy

	MoistureObservation = messages.MoistureObservation
	WeatherRecord       = messages.WeatherRecord
	ForecastDay         = messages.ForecastDay
	StateChangeEvent    = messages.StateChangeEvent
)

const (
	StateOn  = entities.StateOn
	StateOff = entities.StateOff
)
