package models

// Item is a single feed entry as stored by the backend
type Item struct {
	Key   string `json:"k"`
	Value string `json:"v,omitempty"`
}

// PutItemEvent fired when an item is created
type PutItemEvent struct {
	Item Item `json:"item"`
}

// RemoveItemEvent fired when an item is deleted or evicted
type RemoveItemEvent struct {
	Item    Item `json:"item"`
	Evicted bool `json:"evicted"`
}

// ItemsResponse is the body of GET /api/pmap
type ItemsResponse struct {
	Ok    bool              `json:"ok"`
	Items map[string]string `json:"items"`
}

// ItemResponse is the body of GET /api/pmap/:k
type ItemResponse struct {
	Ok    bool   `json:"ok"`
	Key   string `json:"k"`
	Value string `json:"v"`
}

// CreatedResponse is the body of a successful POST /api/pmap
type CreatedResponse struct {
	Ok  bool   `json:"ok"`
	Key string `json:"k"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

// PutRequest is the body of POST /api/pmap
type PutRequest struct {
	Value string `json:"v"`
}
