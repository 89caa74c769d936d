package model

type SignInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

type DownloadRequest struct {
	Dir string `json:"dir"`
}
