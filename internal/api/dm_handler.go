package api

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/dm"
)

// HandleDMMessage is the device endpoint: one POSTed protocol message in,
// one protocol message out, with the integrity MAC attached as a header
// when the engine supplies one.
func (s *Server) HandleDMMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.DM.MaxBodySize))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read DM request body")
		http.Error(w, "Invalid request.", http.StatusBadRequest)
		return
	}

	resp, mac, err := s.engine.HandleMessage(r.Context(), body)
	if err != nil {
		if errors.Is(err, dm.ErrBadMessage) {
			log.Warn().Err(err).Msg("Rejecting malformed DM message")
			http.Error(w, "Invalid request.", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Failed to process DM message")
		http.Error(w, "Internal error.", http.StatusInternalServerError)
		return
	}

	if mac != "" {
		w.Header().Set("x-syncml-hmac", mac)
	}
	w.Header().Set("Content-Type", s.config.DM.ContentType)
	if _, err := w.Write(resp); err != nil {
		log.Warn().Err(err).Msg("Failed to write DM response")
	}
}

// HandleInfoPage serves the enrollment instructions shown to a browser.
func (s *Server) HandleInfoPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(s.infoPage)
}

// HandleErrorRedirect sends the device's error-detail links elsewhere.
func (s *Server) HandleErrorRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.config.DM.ErrorRedirect, http.StatusFound)
}

func (s *Server) loadInfoPage() {
	if path := s.config.DM.InfoPage; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("Failed to read info page, using built-in")
		} else {
			s.infoPage = data
			return
		}
	}
	s.infoPage = []byte(defaultInfoPage)
}

const defaultInfoPage = `<!doctype html>
<html lang="de">
	<head>
		<meta charset="utf-8">
		<title>SWUOTA</title>
	</head>
	<body>
		Die Funktion „Geräteverwaltung" ist erforderlich, um die Firmware über das GPRS-Internet mit dem Telefon selbst zu aktualisieren – „SWUOTA".<br>
		Wählen Sie zum Konfigurieren auf der Registerkarte „Anwendungen" die Option „Gerät verwalten", klicken Sie auf „Ändern" und wählen Sie im Fenster „Profile" das erste Profil aus.<br>
		Tragen Sie die folgenden Daten ein:<br>
		<br>
		<b>Profilname:</b> Software-Update<br>
		<b>Verbindung:</b> GPRS-Internet<br>
		<b>Adresse:</b> http://swuota.global-repair-management.com<br>
		<b>Port:</b> 80<br>
		<b>Benutzername:</b> swuota_user<br>
		<b>Passwort:</b> swuota<br>
		<b>Server ID:</b> SWUOTA<br>
		<b>Server Passwort:</b> swuota<br>
	</body>
</html>
`
