package i18n

// translations maps message key → language → format string.
// Supported languages: en, ru, tr, tk.
var translations = map[string]map[string]string{

	// ─── Booking confirmed ───────────────────────────────────────────────────
	"notification.booking.confirmed.title": {
		"en": "Seat Confirmed",
		"ru": "Место подтверждено",
		"tr": "Koltuk Onaylandı",
		"tk": "Orun Tassyklandy",
	},
	// %s = CRN, %s = departure time
	"notification.booking.confirmed.body": {
		"en": "Booking %s is confirmed for %s",
		"ru": "Бронирование %s подтверждено на %s",
		"tr": "%s numaralı rezervasyon %s için onaylandı",
		"tk": "%s bronlamasy %s üçin tassyklandy",
	},
	// %s = boarding code, %s = CRN
	"notification.booking.boarding_code.sms": {
		"en": "Your boarding code is %s (booking %s). Show it to the driver.",
		"ru": "Ваш код посадки %s (бронь %s). Покажите его водителю.",
		"tr": "Biniş kodunuz %s (rezervasyon %s). Sürücüye gösterin.",
		"tk": "Münmek koduňyz %s (bronlama %s). Sürüjä görkeziň.",
	},

	// ─── Booking cancelled ───────────────────────────────────────────────────
	"notification.booking.cancelled.title": {
		"en": "Booking Cancelled",
		"ru": "Бронирование отменено",
		"tr": "Rezervasyon İptal Edildi",
		"tk": "Bronlama Ýatyryldy",
	},
	// %s = CRN
	"notification.booking.cancelled.body": {
		"en": "Booking %s has been cancelled",
		"ru": "Бронирование %s отменено",
		"tr": "%s numaralı rezervasyon iptal edildi",
		"tk": "%s bronlamasy ýatyryldy",
	},

	// ─── Hold expired ────────────────────────────────────────────────────────
	"notification.booking.hold_expired.title": {
		"en": "Seat Hold Expired",
		"ru": "Бронь места истекла",
		"tr": "Koltuk Tutma Süresi Doldu",
		"tk": "Orun Saklamak Möhleti Geçdi",
	},
	// %s = CRN
	"notification.booking.hold_expired.body": {
		"en": "Payment for %s was not completed in time. Your seats were released.",
		"ru": "Оплата %s не завершена вовремя. Места освобождены.",
		"tr": "%s için ödeme zamanında tamamlanmadı. Koltuklarınız serbest bırakıldı.",
		"tk": "%s üçin töleg wagtynda tamamlanmady. Orunlaryňyz boşadyldy.",
	},

	// ─── Boarded / completed / no-show ───────────────────────────────────────
	"notification.booking.boarded.title": {
		"en": "Enjoy Your Ride",
		"ru": "Приятной поездки",
		"tr": "İyi Yolculuklar",
		"tk": "Ýoluňyz Ak Bolsun",
	},
	"notification.booking.completed.title": {
		"en": "Trip Completed",
		"ru": "Поездка завершена",
		"tr": "Yolculuk Tamamlandı",
		"tk": "Ýol Tamamlandy",
	},
	// %s = formatted total paid
	"notification.booking.completed.body": {
		"en": "Thanks for riding with us. Total paid: %s",
		"ru": "Спасибо за поездку. Оплачено: %s",
		"tr": "Bizimle yolculuk ettiğiniz için teşekkürler. Ödenen: %s",
		"tk": "Biziň bilen syýahat edeniňiz üçin sag boluň. Tölenen: %s",
	},
	"notification.booking.no_show.title": {
		"en": "Missed Trip",
		"ru": "Пропущенная поездка",
		"tr": "Kaçırılan Yolculuk",
		"tk": "Sypdyrylan Ýol",
	},
	// %s = CRN
	"notification.booking.no_show.body": {
		"en": "You were marked as a no-show for booking %s",
		"ru": "Вы не явились на поездку по брони %s",
		"tr": "%s rezervasyonunda gelmediniz olarak işaretlendiniz",
		"tk": "%s bronlamasy boýunça gelmedik diýlip bellendiňiz",
	},
}
