package cloudevents

// CloudEvents extension attribute names for clinic context
const (
	ExtCorrelationID = "cliniccorrelationid"
	ExtLocationID    = "cliniclocationid"
	ExtTransferID    = "clinictransferid"
	ExtActorID       = "clinicactorid"
)

// WithCorrelation sets the correlation id and returns the event
func (e *ClinicCloudEvent) WithCorrelation(correlationID string) *ClinicCloudEvent {
	e.CorrelationID = correlationID
	return e
}

// WithLocation sets the location id and returns the event
func (e *ClinicCloudEvent) WithLocation(locationID string) *ClinicCloudEvent {
	e.LocationID = locationID
	return e
}

// WithActor sets the acting user id and returns the event
func (e *ClinicCloudEvent) WithActor(actorID string) *ClinicCloudEvent {
	e.ActorID = actorID
	return e
}
