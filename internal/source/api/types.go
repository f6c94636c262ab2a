package api

// mailPage is the wire form of one page of message summaries.
type mailPage struct {
	Messages      []mailMessage `json:"messages"`
	NextPageToken string        `json:"nextPageToken"`
	TotalEstimate int           `json:"totalEstimate"`
	HasMore       bool          `json:"hasMore"`
}

// mailMessage is the wire form of a message summary.
type mailMessage struct {
	ID            string   `json:"id"`
	ThreadID      string   `json:"threadId"`
	From          string   `json:"from"`
	Subject       string   `json:"subject"`
	Snippet       string   `json:"snippet"`
	Date          string   `json:"date"` // RFC 3339
	IsRead        bool     `json:"isRead"`
	IsStarred     bool     `json:"isStarred"`
	Labels        []string `json:"labels"`
	HasAttachment bool     `json:"hasAttachment"`
}

// folderStats is the wire form of per-folder aggregates.
type folderStats struct {
	Unread int `json:"unread"`
	Total  int `json:"total"`
}

// actionRequest is the body of a message action call.
type actionRequest struct {
	Action string `json:"action"`
	Folder string `json:"folder,omitempty"`
}

// treeNode is the wire form of a folder tree node.
type treeNode struct {
	ID         string            `json:"id"`
	Slug       string            `json:"slug"`
	Title      string            `json:"title"`
	Scope      string            `json:"scope"`
	OrderIndex int               `json:"orderIndex"`
	Payload    map[string]string `json:"payload,omitempty"`
	Children   []treeNode        `json:"children,omitempty"`
}

// createNodeRequest is the body of a node creation call.
type createNodeRequest struct {
	Title      string            `json:"title"`
	Slug       string            `json:"slug"`
	ParentSlug string            `json:"parentSlug,omitempty"`
	Scope      string            `json:"scope"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// updateNodeRequest is the body of a partial node update.
type updateNodeRequest struct {
	Title   *string           `json:"title,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// moveNodeRequest is the body of a node move call.
type moveNodeRequest struct {
	NewParentID   *string `json:"newParentId,omitempty"`
	NewOrderIndex *int    `json:"newOrderIndex,omitempty"`
}

// whoAmI is the wire form of the identity endpoint response.
type whoAmI struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// apiErrorResponse is the error envelope the mail API returns on
// non-success statuses.
type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// apiError is a single error entry within an error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
