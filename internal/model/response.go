package model

type PreviewResponse struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type StateResponse struct {
	Authenticated bool              `json:"authenticated"`
	Username      string            `json:"username,omitempty"`
	Usage         Usage             `json:"usage"`
	CanSubmit     bool              `json:"can_submit"`
	Reason        string            `json:"reason"`
	Missing       []string          `json:"missing"`
	Phase         string            `json:"phase"`
	Result        *GenerationResult `json:"result,omitempty"`
	Failure       string            `json:"failure,omitempty"`
	Form          FormState         `json:"form"`
	DisplayName   string            `json:"display_category"`
	Preview       *PreviewResponse  `json:"preview,omitempty"`
	Theme         Theme             `json:"theme"`
}
