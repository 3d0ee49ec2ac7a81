package domain

import "strings"

type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageMarathi Language = "marathi"
	LanguageTamil   Language = "tamil"
	LanguageTelugu  Language = "telugu"
)

// LanguageInfo is the static text bound to one selectable language.
type LanguageInfo struct {
	Value       Language `json:"value"`
	Label       string   `json:"label"`
	Greeting    string   `json:"greeting"`
	Instruction string   `json:"-"`
	LocalNotice string   `json:"-"`
}

var languages = []LanguageInfo{
	{
		Value:       LanguageEnglish,
		Label:       "English",
		Greeting:    "Hello! I'm your health assistant. How can I help you today?",
		Instruction: "Respond ONLY in English. Do not use any other language.",
		LocalNotice: "I'm currently running in local mode. To get full AI responses, please configure the chat gateway (gateway URL and client key). For now, I can tell you that this is a medical assistant app designed to help with general health inquiries. Remember to always consult with healthcare professionals for serious medical concerns.",
	},
	{
		Value:       LanguageHindi,
		Label:       "हिंदी (Hindi)",
		Greeting:    "नमस्ते! मैं आपका स्वास्थ्य सहायक हूं। मैं आज आपकी कैसे मदद कर सकता हूं?",
		Instruction: "Respond ONLY in Hindi (हिंदी). Use Devanagari script. Do not use any other language.",
		LocalNotice: "मैं वर्तमान में स्थानीय मोड में चल रहा हूं। पूर्ण AI प्रतिक्रियाएं प्राप्त करने के लिए, कृपया चैट गेटवे कॉन्फ़िगर करें। गंभीर चिकित्सा चिंताओं के लिए हमेशा स्वास्थ्य देखभाल पेशेवरों से परामर्श करना याद रखें।",
	},
	{
		Value:       LanguageMarathi,
		Label:       "मराठी (Marathi)",
		Greeting:    "नमस्कार! मी तुमचा आरोग्य सहाय्यक आहे. आज मी तुम्हाला कशी मदत करू शकतो?",
		Instruction: "Respond ONLY in Marathi (मराठी). Use Devanagari script. Do not use any other language.",
		LocalNotice: "मी सध्या स्थानिक मोडमध्ये चालत आहे. पूर्ण AI प्रतिसाद मिळवण्यासाठी, कृपया चॅट गेटवे कॉन्फ़िगर करा. गंभीर वैद्यकीय चिंतांसाठी नेहमी आरोग्य सेवा व्यावसायिकांशी सल्लामसलत करणे आठवा.",
	},
	{
		Value:       LanguageTamil,
		Label:       "தமிழ் (Tamil)",
		Greeting:    "வணக்கம்! நான் உங்கள் சுகாதார உதவியாளர். இன்று நான் உங்களுக்கு எப்படி உதவ முடியும்?",
		Instruction: "Respond ONLY in Tamil (தமிழ்). Use Tamil script. Do not use any other language.",
		LocalNotice: "நான் தற்போது உள்ளூர் பயன்முறையில் இயங்குகிறேன். முழு AI பதில்களைப் பெற, அரட்டை நுழைவாயிலை உள்ளமைக்கவும். தீவிர மருத்துவ கவலைகளுக்கு எப்போதும் சுகாதார நிபுணர்களுடன் கலந்தாலோசிப்பதை நினைவில் கொள்ளுங்கள்.",
	},
	{
		Value:       LanguageTelugu,
		Label:       "తెలుగు (Telugu)",
		Greeting:    "నమస్కారం! నేను మీ ఆరోగ్య సహాయకుడిని. ఈరోజు నేను మీకు ఎలా సహాయం చేయగలను?",
		Instruction: "Respond ONLY in Telugu (తెలుగు). Use Telugu script. Do not use any other language.",
		LocalNotice: "నేను ప్రస్తుతం స్థానిక మోడ్‌లో నడుస్తున్నాను. పూర్తి AI ప్రతిస్పందనలను పొందడానికి, దయచేసి చాట్ గేట్‌వేని కాన్ఫిగర్ చేయండి. తీవ్రమైన వైద్య ఆందోళనల కోసం ఎల్లప్పుడూ ఆరోగ్య సంరక్షణ నిపుణులతో సంప్రదించడం గుర్తుంచుకోండి.",
	},
}

// LocalImageNotice is the canned reply to an image when no gateway is configured.
const LocalImageNotice = "I can see you've uploaded an image. To analyze medical images and detect potential diseases, please configure the chat gateway. This feature uses AI vision capabilities to help identify symptoms visible in images. Remember to always consult with healthcare professionals for proper diagnosis."

// Languages returns the selectable languages in display order.
func Languages() []LanguageInfo {
	out := make([]LanguageInfo, len(languages))
	copy(out, languages)
	return out
}

// ParseLanguage matches a language value case-insensitively.
func ParseLanguage(s string) (Language, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, l := range languages {
		if string(l.Value) == s {
			return l.Value, true
		}
	}
	return LanguageEnglish, false
}

// Info returns the static text for l, falling back to English for unknown values.
func (l Language) Info() LanguageInfo {
	for _, info := range languages {
		if info.Value == l {
			return info
		}
	}
	return languages[0]
}
