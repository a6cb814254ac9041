package calsync

import "fieldboard/internal/store"

// ApiResponse models the top-level structure of the calendar feed's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int               `json:"page"`
		PageSize int               `json:"pageSize"`
		Total    int               `json:"total"`
		Items    []store.FeedEvent `json:"items"`
	} `json:"data"`
}
