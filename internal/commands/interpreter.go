// Package commands interprets chat messages as credential-store commands.
//
// Matching is case-insensitive substring/prefix over an ordered rule table;
// the first matching rule wins, so overlapping phrases resolve by declared
// order, not code order. Messages that match no rule fall through to the
// model. Response and usage strings are the user-facing contract and are
// kept verbatim.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lromero/labchat/internal/auth"
	"github.com/lromero/labchat/internal/password"
	"github.com/lromero/labchat/internal/store"
)

// deniedMsg is returned by every gated command while the admin session is
// closed. The store is never touched on this path.
const deniedMsg = "🔐 **ACCESO DENEGADO**\n\n" +
	"Debes autenticarte como administrador primero.\n" +
	"Usa: `auth admin [contraseña]`"

// Interpreter dispatches command phrases against the credential store.
type Interpreter struct {
	repo  store.Repository
	rules []rule
}

type rule struct {
	name  string
	match func(lower string) bool
	run   func(ctx context.Context, gate *auth.Gate, raw, lower string) string
}

// New creates an interpreter over the given repository.
func New(repo store.Repository) *Interpreter {
	i := &Interpreter{repo: repo}
	i.rules = []rule{
		{"auth", matchPrefix("auth admin"), i.cmdAuth},
		{"session-status", matchAny("session status", "estado sesion"), i.cmdSessionStatus},
		{"logout", matchAny("logout admin", "cerrar sesion"), i.cmdLogout},
		// "regenerar contraseña" embeds "generar contraseña", so the
		// regenerate rule must be declared first or it is unreachable by
		// that phrase.
		{"regenerate-password", matchAny("regenerar contraseña", "nueva contraseña"), i.cmdRegenerate},
		{"generate-password", matchAny("generar contraseña"), i.cmdGeneratePassword},
		{"add", matchAny("agregar usuario", "crear usuario"), i.cmdAdd},
		{"list", matchAny("listar usuarios", "mostrar usuarios", "ver usuarios"), i.cmdList},
		{"search", matchAny("buscar usuario"), i.cmdSearch},
		{"modify", matchAny("modificar usuario"), i.cmdModify},
		{"delete", matchAny("eliminar usuario", "borrar usuario"), i.cmdDelete},
		{"stats", matchAny("estadisticas", "estadísticas"), i.cmdStats},
		{"help", matchAny("ayuda db", "help db"), i.cmdHelp},
	}
	return i
}

// Execute runs the message against the rule table. The second return value
// is false when the message is not a command and should go to the model.
func (i *Interpreter) Execute(ctx context.Context, gate *auth.Gate, raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, r := range i.rules {
		if r.match(lower) {
			slog.Debug("command matched", "rule", r.name)
			return r.run(ctx, gate, raw, lower), true
		}
	}
	return "", false
}

func matchPrefix(prefix string) func(string) bool {
	return func(lower string) bool {
		return strings.HasPrefix(lower, prefix)
	}
}

func matchAny(phrases ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

// checkGate implements verify-and-extend: a closed gate yields the denial
// message; an open gate has its session clock reset as a side effect.
func checkGate(gate *auth.Gate) (string, bool) {
	if !gate.Valid() {
		return deniedMsg, false
	}
	gate.Extend()
	return "", true
}

// ---- ungated commands ----

func (i *Interpreter) cmdAuth(_ context.Context, gate *auth.Gate, raw, _ string) string {
	parts := strings.Fields(raw)
	if len(parts) < 3 {
		return "❌ Formato: 'auth admin [contraseña]'"
	}
	pw := strings.Join(parts[2:], " ")
	if gate.Authenticate(pw) {
		minutes := int(gate.TTL().Minutes())
		return fmt.Sprintf("🔓 **AUTENTICACIÓN EXITOSA**\n\n"+
			"✅ Sesión admin iniciada\n"+
			"⏱️ Duración: %d minutos\n"+
			"🛡️ Ahora puedes ejecutar comandos de base de datos", minutes)
	}
	return "🚫 **CONTRASEÑA INCORRECTA**\n\n" +
		"❌ Acceso denegado\n" +
		"💡 Verifica tu contraseña de administrador"
}

func (i *Interpreter) cmdSessionStatus(_ context.Context, gate *auth.Gate, _, _ string) string {
	if gate.Valid() {
		remaining := gate.Remaining()
		return fmt.Sprintf("🔓 **SESIÓN ACTIVA**\n\n"+
			"✅ Autenticado como administrador\n"+
			"⏱️ Tiempo restante: %dm %ds\n"+
			"🔄 Para cerrar sesión usa: `logout admin`", remaining/60, remaining%60)
	}
	return "🔐 **SESIÓN CERRADA**\n\n" +
		"❌ No estás autenticado\n" +
		"🔑 Para acceder usa: `auth admin [contraseña]`"
}

func (i *Interpreter) cmdLogout(_ context.Context, gate *auth.Gate, _, _ string) string {
	if gate.Valid() {
		gate.Logout()
		return "🔐 **SESIÓN CERRADA**\n\n" +
			"✅ Sesión admin terminada\n" +
			"🛡️ Base de datos protegida"
	}
	return "ℹ️ No hay sesión activa para cerrar"
}

func (i *Interpreter) cmdGeneratePassword(_ context.Context, _ *auth.Gate, raw, lower string) string {
	length := password.DefaultLength
	if strings.Contains(lower, "longitud") {
		if n, ok := lengthAfterKeyword(raw); ok {
			length = n
		}
	}

	pw, err := password.Generate(length)
	if err != nil {
		return "❌ Formato: 'generar contraseña' o 'generar contraseña longitud [número]'"
	}
	// The reported length is the requested one; requests below the floor
	// still produce a floor-length password.
	return fmt.Sprintf("🔐 Contraseña generada (longitud %d):\n"+
		"**%s**\n\n"+
		"✅ La contraseña incluye:\n"+
		"• Letras mayúsculas y minúsculas\n"+
		"• Números\n"+
		"• Símbolos especiales\n"+
		"• Generada con seguridad criptográfica\n\n"+
		"ℹ️ Este comando no requiere autenticación admin", length, pw)
}

func (i *Interpreter) cmdHelp(_ context.Context, _ *auth.Gate, _, _ string) string {
	return "🔐 **COMANDOS DE BASE DE DATOS**\n\n" +
		"**AUTENTICACIÓN:**\n" +
		"• `auth admin [contraseña]` - Autenticarse como admin\n" +
		"• `session status` - Ver estado de sesión\n" +
		"• `logout admin` - Cerrar sesión\n\n" +
		"**SIN AUTENTICACIÓN:**\n" +
		"• `generar contraseña [longitud]` - Generar contraseña\n" +
		"• `ayuda db` - Mostrar esta ayuda\n\n" +
		"**CON AUTENTICACIÓN ADMIN:**\n" +
		"• `agregar usuario [nombre] programa [programa]` - Crear usuario\n" +
		"• `listar usuarios` - Ver todos los usuarios\n" +
		"• `buscar usuario [término]` - Buscar usuario\n" +
		"• `modificar usuario [id] [campo] [valor]` - Modificar usuario\n" +
		"• `eliminar usuario [id]` - Eliminar usuario\n" +
		"• `regenerar contraseña [id]` - Nueva contraseña\n" +
		"• `estadísticas` - Ver estadísticas\n\n" +
		"🛡️ **SEGURIDAD:** Sesiones admin duran 5 minutos"
}

// lengthAfterKeyword returns the integer following the first "longitud"
// token, if any.
func lengthAfterKeyword(raw string) (int, bool) {
	parts := strings.Fields(raw)
	for idx, word := range parts {
		if strings.ToLower(word) == "longitud" {
			if idx+1 >= len(parts) {
				return 0, false
			}
			n, err := strconv.Atoi(parts[idx+1])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// firstNumericToken returns the first all-digits whitespace token.
func firstNumericToken(raw string) (int64, bool) {
	for _, word := range strings.Fields(raw) {
		if n, err := strconv.ParseInt(word, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// tokenIndex returns the index of the first token equal (case-insensitively)
// to keyword, or -1.
func tokenIndex(parts []string, keyword string) int {
	for idx, word := range parts {
		if strings.ToLower(word) == keyword {
			return idx
		}
	}
	return -1
}

// joinRange joins parts[lo:hi] with single spaces, tolerating degenerate
// ranges.
func joinRange(parts []string, lo, hi int) string {
	if lo < 0 {
		lo = 0
	}
	if hi > len(parts) {
		hi = len(parts)
	}
	if lo >= hi {
		return ""
	}
	return strings.Join(parts[lo:hi], " ")
}
