package tts

import (
	"errors"
	"fmt"
)

// Static errors.
var (
	ErrUnknownTheme = errors.New("unknown worldview")
	ErrUnknownGrade = errors.New("unknown grade")
)

// GradeStyle is the delivery used for one performance grade.
type GradeStyle struct {
	Style       string
	Rate        float64
	Description string
}

// VoiceProfile is the narrator of one worldview.
type VoiceProfile struct {
	Character string
	Gender    string
	Voice     string
	BaseRate  float64
	Grades    map[string]GradeStyle
}

// Voice is a VoiceProfile resolved for one grade.
type Voice struct {
	Character   string
	Voice       string
	Style       string
	Rate        float64
	Description string
}

// voiceProfiles is keyed by worldview.
var voiceProfiles = map[string]VoiceProfile{
	"fantasy": {
		Character: "현자 엘더린",
		Gender:    "male",
		Voice:     "Zubenelgenubi",
		BaseRate:  0.85,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "dramatic", Rate: 0.8, Description: "위대한 영웅을 축하하는 장엄한 예언"},
			"good":    {Style: "gentle", Rate: 0.85, Description: "따뜻하게 격려하는 현자의 축복"},
			"normal":  {Style: "expressive", Rate: 0.88, Description: "희망을 전하는 자애로운 조언"},
		},
	},
	"sports": {
		Character: "코치 박",
		Gender:    "male",
		Voice:     "Algieba",
		BaseRate:  1.05,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "energetic", Rate: 1.1, Description: "챔피언의 승리를 축하하는 환호"},
			"good":    {Style: "expressive", Rate: 1.05, Description: "성과를 인정하는 열정적 격려"},
			"normal":  {Style: "energetic", Rate: 1.08, Description: "다음 도전을 응원하는 파이팅"},
		},
	},
	"idol": {
		Character: "매니저 수진",
		Gender:    "female",
		Voice:     "Achernar",
		BaseRate:  1.0,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "expressive", Rate: 1.05, Description: "데뷔 성공을 축하하는 감격"},
			"good":    {Style: "gentle", Rate: 1.0, Description: "따뜻하게 칭찬하는 언니 톤"},
			"normal":  {Style: "expressive", Rate: 1.02, Description: "꿈을 응원하는 친근한 격려"},
		},
	},
	"sf": {
		Character: "AI 아리아",
		Gender:    "female",
		Voice:     "Autonoe",
		BaseRate:  1.05,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "expressive", Rate: 1.0, Description: "감정을 배운 AI의 기쁨"},
			"good":    {Style: "neutral", Rate: 1.05, Description: "차분한 분석과 인정"},
			"normal":  {Style: "gentle", Rate: 1.02, Description: "인간적 따뜻함을 담은 격려"},
		},
	},
	"zombie": {
		Character: "닥터 리",
		Gender:    "male",
		Voice:     "Enceladus",
		BaseRate:  1.08,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "expressive", Rate: 1.05, Description: "생존 성공의 안도"},
			"good":    {Style: "neutral", Rate: 1.08, Description: "차분한 의료인 격려"},
			"normal":  {Style: "expressive", Rate: 1.1, Description: "희망을 전하는 생존자"},
		},
	},
	"spy": {
		Character: "핸들러 오메가",
		Gender:    "male",
		Voice:     "Charon",
		BaseRate:  0.88,
		Grades: map[string]GradeStyle{
			"perfect": {Style: "dramatic", Rate: 0.85, Description: "임무 완수를 인정하는 절제된 칭찬"},
			"good":    {Style: "neutral", Rate: 0.88, Description: "냉철하지만 인정하는"},
			"normal":  {Style: "gentle", Rate: 0.9, Description: "다음 임무를 위한 격려"},
		},
	},
}

// LookupVoice resolves the narrator and delivery for a worldview and grade.
func LookupVoice(theme, grade string) (Voice, error) {
	profile, ok := voiceProfiles[theme]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
	}

	gradeStyle, ok := profile.Grades[grade]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %q for %s", ErrUnknownGrade, grade, theme)
	}

	return Voice{
		Character:   profile.Character,
		Voice:       profile.Voice,
		Style:       gradeStyle.Style,
		Rate:        gradeStyle.Rate,
		Description: gradeStyle.Description,
	}, nil
}

// Profile returns the static profile of a worldview.
func Profile(theme string) (VoiceProfile, bool) {
	profile, ok := voiceProfiles[theme]

	return profile, ok
}
