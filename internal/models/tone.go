package models

type Tone string

const (
	ToneBeep       Tone = "beep"
	ToneCamera     Tone = "camera"
	ToneDoubleBeep Tone = "double-beep"
	ToneDing       Tone = "ding"
	ToneSoftBeep   Tone = "soft-beep"
	ToneWaterDrop  Tone = "water-drop"
	TonePop        Tone = "pop"
	ToneBellChime  Tone = "bell-chime"
	ToneWoodblock  Tone = "woodblock"
	ToneTick       Tone = "tick"
)

var Tones = []Tone{
	ToneBeep, ToneCamera, ToneDoubleBeep, ToneDing, ToneSoftBeep,
	ToneWaterDrop, TonePop, ToneBellChime, ToneWoodblock, ToneTick,
}

func (t Tone) Valid() bool {
	for _, known := range Tones {
		if t == known {
			return true
		}
	}
	return false
}

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionPrompt  PermissionState = "prompt"
	PermissionDenied  PermissionState = "denied"
)
