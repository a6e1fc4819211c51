package response

type EventSummaryResponse struct {
	EventID  uint                 `json:"event_id"`
	Statuses []EventSummaryStatus `json:"statuses"`
}

type EventSummaryStatus struct {
	Status  string `json:"status"`
	Count   int64  `json:"count"`
	Revenue int64  `json:"revenue"`
}
