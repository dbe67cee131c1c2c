package domain

import (
	"encoding/json"

	"github.com/oncoayuda/casework/internal/shared/types"
)

// Calendar-date fields accept a plain YYYY-MM-DD as well as a timestamp.

func (c *Child) UnmarshalJSON(data []byte) error {
	type plain Child
	aux := struct {
		*plain
		BirthDate types.Date `json:"birth_date"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.BirthDate = aux.BirthDate.Time
	return nil
}

func (in *DeliveryInput) UnmarshalJSON(data []byte) error {
	type plain DeliveryInput
	aux := struct {
		*plain
		DeliveryDate types.Date `json:"delivery_date"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.DeliveryDate = aux.DeliveryDate.Time
	return nil
}

func (d *MedicalDetails) UnmarshalJSON(data []byte) error {
	type plain MedicalDetails
	aux := struct {
		*plain
		SurveillanceStart *types.Date `json:"surveillance_start,omitempty"`
		DateOfDeath       *types.Date `json:"date_of_death,omitempty"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.SurveillanceStart = aux.SurveillanceStart.Ptr()
	d.DateOfDeath = aux.DateOfDeath.Ptr()
	return nil
}
