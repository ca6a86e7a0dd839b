package sound

// Sound names, matching file base names in the sound directory.
const (
	Message = "message" // 新消息
	Error   = "error"
)
