package bus

// Topic names shared by the pipeline and every window surface.
const (
	TopicSpeechStarted     = "speech_started"
	TopicSpeechEnded       = "speech_ended"
	TopicAIThinking        = "ai_thinking"
	TopicAIResponseReady   = "ai_response_ready"
	TopicScreenshotStarted = "screenshot_started"
	TopicVoiceError        = "voice_error"
	TopicGameChanged       = "game-changed"
	TopicSimulationEvent   = "simulation_event"
	TopicChatMessage       = "chat_message"
	TopicListeningStopped  = "listening_stopped"
)
