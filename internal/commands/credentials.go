package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lromero/labchat/internal/auth"
	"github.com/lromero/labchat/internal/domain"
	"github.com/lromero/labchat/internal/password"
	"github.com/lromero/labchat/internal/shared"
	"github.com/lromero/labchat/internal/store"
)

// dateLayout matches the timestamp format shown in listings.
const dateLayout = "2006-01-02 15:04:05"

const (
	addUsageMsg = "❌ Formato:\n" +
		"• 'agregar usuario [nombre] programa [programa]' (contraseña automática)\n" +
		"• 'agregar usuario [nombre] programa [programa] longitud [número]' (contraseña auto con longitud)\n" +
		"• 'agregar usuario [nombre] programa [programa] contraseña [contraseña]' (contraseña manual)\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	addParseErrMsg = "❌ Error en formato. Usa:\n" +
		"• 'agregar usuario Juan programa AutoCAD' (contraseña automática)\n" +
		"• 'agregar usuario Juan programa AutoCAD longitud 20' (contraseña auto de 20 chars)\n" +
		"• 'agregar usuario Juan programa AutoCAD contraseña mi_pass_123' (manual)\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	regenerateUsageMsg = "❌ Formato: 'regenerar contraseña [id]' o 'regenerar contraseña [id] longitud [número]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	searchFormatMsg = "❌ Formato: 'buscar usuario [nombre/id/programa]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	searchEmptyMsg = "❌ Especifica qué buscar: 'buscar usuario [nombre/id/programa]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	modifyUsageMsg = "❌ Formato: 'modificar usuario [id] [campo] [valor]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	modifyIDUsageMsg = "❌ ID debe ser un número. Formato: 'modificar usuario [id] contraseña [nueva]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	modifyFieldsMsg = "❌ Especifica qué modificar: 'modificar usuario [id] contraseña [nueva]' o 'modificar usuario [id] programa [nuevo]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"

	deleteUsageMsg = "❌ Formato: 'eliminar usuario [id]'\n\n" +
		"🔐 **REQUIERE AUTENTICACIÓN ADMIN**"
)

// cmdAdd parses the three accepted agregar shapes. Parsing happens before the
// gate check, so malformed commands return usage hints even when the session
// is closed; the store is only reached through addUser, which gates first.
func (i *Interpreter) cmdAdd(ctx context.Context, gate *auth.Gate, raw, lower string) string {
	parts := strings.Fields(raw)
	hasProgram := strings.Contains(lower, "programa")
	hasPassword := strings.Contains(lower, "contraseña")

	switch {
	case hasProgram && !hasPassword:
		idxProgram := tokenIndex(parts, "programa")
		if idxProgram == -1 {
			return addParseErrMsg
		}
		username := joinRange(parts, 2, idxProgram)
		program := joinRange(parts, idxProgram+1, len(parts))
		length := password.DefaultLength
		// "longitud N" trims the program to the tokens before it; a
		// non-numeric N leaves it as literal program text.
		if idxLength := tokenIndex(parts, "longitud"); idxLength != -1 && idxLength+1 < len(parts) {
			if n, err := strconv.Atoi(parts[idxLength+1]); err == nil {
				length = n
				program = joinRange(parts, idxProgram+1, idxLength)
			}
		}
		return i.addUser(ctx, gate, username, program, "", length)

	case hasProgram && hasPassword:
		idxProgram := tokenIndex(parts, "programa")
		idxPassword := tokenIndex(parts, "contraseña")
		if idxProgram == -1 || idxPassword == -1 {
			return addParseErrMsg
		}
		username := joinRange(parts, 2, idxProgram)
		program := joinRange(parts, idxProgram+1, idxPassword)
		custom := joinRange(parts, idxPassword+1, len(parts))
		return i.addUser(ctx, gate, username, program, custom, password.DefaultLength)

	default:
		return addUsageMsg
	}
}

// addUser gates, fills in the password (generated when no custom one was
// given) and inserts the row.
func (i *Interpreter) addUser(ctx context.Context, gate *auth.Gate, username, program, custom string, length int) string {
	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	pw := custom
	generated := false
	if pw == "" {
		var err error
		pw, err = password.Generate(length)
		if err != nil {
			return fmt.Sprintf("❌ Error al agregar usuario: %v", err)
		}
		generated = true
	}

	cred, err := i.repo.Create(ctx, username, program, pw)
	if err != nil {
		if shared.IsSQLiteConstraintError(err) {
			return "❌ Error: Ya existe un usuario con datos similares"
		}
		return fmt.Sprintf("❌ Error al agregar usuario: %v", err)
	}

	passwordLine := "🔐 Contraseña personalizada establecida"
	if generated {
		passwordLine = fmt.Sprintf("🔐 Contraseña generada automáticamente: %s", pw)
	}
	return fmt.Sprintf("✅ Usuario '%s' agregado exitosamente con ID %d\n"+
		"👤 Usuario: %s\n"+
		"💻 Programa: %s\n"+
		"%s\n"+
		"🔐 Operación autorizada por admin",
		cred.Username, cred.ID, cred.Username, cred.Program, passwordLine)
}

func (i *Interpreter) cmdRegenerate(ctx context.Context, gate *auth.Gate, raw, lower string) string {
	id, found := firstNumericToken(raw)
	if !found {
		return regenerateUsageMsg
	}
	length := password.DefaultLength
	if strings.Contains(lower, "longitud") {
		if n, ok := lengthAfterKeyword(raw); ok {
			length = n
		}
	}

	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	pw, err := password.Generate(length)
	if err != nil {
		return fmt.Sprintf("❌ Error al regenerar contraseña: %v", err)
	}
	name, err := i.repo.UpdatePassword(ctx, id, pw)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("❌ No existe usuario con ID %d", id)
	}
	if err != nil {
		return fmt.Sprintf("❌ Error al regenerar contraseña: %v", err)
	}
	return fmt.Sprintf("🔄 Contraseña regenerada para '%s' (ID %d)\n"+
		"🔐 Nueva contraseña: %s\n"+
		"🔐 Operación autorizada por admin", name, id, pw)
}

func (i *Interpreter) cmdList(ctx context.Context, gate *auth.Gate, _, _ string) string {
	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	creds, err := i.repo.List(ctx, 0)
	if err != nil {
		return fmt.Sprintf("❌ Error al obtener usuarios: %v", err)
	}
	if len(creds) == 0 {
		return "📋 No hay usuarios registrados en la base de datos."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Lista de usuarios (%d total) - 🔐 Acceso autorizado:\n\n", len(creds))
	for _, c := range creds {
		fmt.Fprintf(&b, "🔹 ID: %d\n"+
			"   Usuario: %s\n"+
			"   Programa: %s\n"+
			"   Contraseña: %s\n"+
			"   Fecha: %s\n\n",
			c.ID, c.Username, c.Program, c.Password, c.CreatedAt.Format(dateLayout))
	}
	return b.String()
}

func (i *Interpreter) cmdSearch(ctx context.Context, gate *auth.Gate, raw, _ string) string {
	// The term is whatever follows the literal phrase in the original
	// message; casing variants of the phrase itself are a format error.
	const phrase = "buscar usuario"
	idx := strings.Index(raw, phrase)
	if idx == -1 {
		return searchFormatMsg
	}
	term := strings.TrimSpace(raw[idx+len(phrase):])
	if term == "" {
		return searchEmptyMsg
	}

	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	creds, err := i.repo.Search(ctx, term)
	if err != nil {
		return fmt.Sprintf("❌ Error en búsqueda: %v", err)
	}
	if len(creds) == 0 {
		return fmt.Sprintf("❌ No se encontraron usuarios que coincidan con '%s'", term)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Resultados de búsqueda para '%s' - 🔐 Acceso autorizado:\n\n", term)
	for _, c := range creds {
		fmt.Fprintf(&b, "🔹 ID: %d | Usuario: %s | Programa: %s | Contraseña: %s | Fecha: %s\n",
			c.ID, c.Username, c.Program, c.Password, c.CreatedAt.Format(dateLayout))
	}
	return b.String()
}

func (i *Interpreter) cmdModify(ctx context.Context, gate *auth.Gate, raw, _ string) string {
	parts := strings.Fields(raw)
	if len(parts) < 4 {
		return modifyUsageMsg
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return modifyIDUsageMsg
	}
	rest := strings.Join(parts[3:], " ")

	var upd domain.CredentialUpdate
	switch {
	case strings.HasPrefix(rest, "contraseña "):
		v := strings.TrimSpace(strings.TrimPrefix(rest, "contraseña "))
		upd.Password = &v
	case strings.HasPrefix(rest, "programa "):
		v := strings.TrimSpace(strings.TrimPrefix(rest, "programa "))
		upd.Program = &v
	case strings.HasPrefix(rest, "usuario "):
		// Everything after the keyword is the new name, even if it
		// contains further keywords.
		v := strings.TrimSpace(strings.TrimPrefix(rest, "usuario "))
		upd.Username = &v
	default:
		// Combined form: "... programa [nuevo] contraseña [nueva]".
		// The password runs to the end; the program stops where the
		// password keyword starts. An empty extraction leaves the field
		// untouched rather than blanking the stored value.
		if idx := strings.Index(rest, " contraseña "); idx != -1 {
			if v := strings.TrimSpace(rest[idx+len(" contraseña "):]); v != "" {
				upd.Password = &v
			}
		}
		if idx := strings.Index(rest, " programa "); idx != -1 {
			end := strings.Index(rest, " contraseña ")
			var v string
			switch {
			case end == -1:
				v = strings.TrimSpace(rest[idx+len(" programa "):])
			case end <= idx:
				v = ""
			default:
				v = strings.TrimSpace(rest[idx+len(" programa "):end])
			}
			if v != "" {
				upd.Program = &v
			}
		}
	}
	if upd.Empty() {
		return modifyFieldsMsg
	}

	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	err = i.repo.Update(ctx, id, upd)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("❌ No existe usuario con ID %d", id)
	}
	if err != nil {
		return fmt.Sprintf("❌ Error al modificar usuario: %v", err)
	}
	return fmt.Sprintf("✅ Usuario con ID %d modificado exitosamente - 🔐 Operación autorizada por admin", id)
}

func (i *Interpreter) cmdDelete(ctx context.Context, gate *auth.Gate, raw, _ string) string {
	parts := strings.Fields(raw)
	var id int64
	parsed := false
	if len(parts) >= 3 {
		if n, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			id, parsed = n, true
		}
	}
	if !parsed {
		return deleteUsageMsg
	}

	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	name, err := i.repo.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("❌ No existe usuario con ID %d", id)
	}
	if err != nil {
		return fmt.Sprintf("❌ Error al eliminar usuario: %v", err)
	}
	return fmt.Sprintf("✅ Usuario '%s' (ID %d) eliminado exitosamente - 🔐 Operación autorizada por admin", name, id)
}

func (i *Interpreter) cmdStats(ctx context.Context, gate *auth.Gate, _, _ string) string {
	if msg, authorized := checkGate(gate); !authorized {
		return msg
	}

	stats, err := i.repo.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error al obtener estadísticas: %v", err)
	}

	var b strings.Builder
	b.WriteString("📊 Estadísticas de la base de datos - 🔐 Acceso autorizado:\n\n")
	fmt.Fprintf(&b, "👥 Total de usuarios: %d\n\n", stats.Total)
	if len(stats.TopPrograms) > 0 {
		b.WriteString("🏆 Programas más usados:\n")
		for _, pc := range stats.TopPrograms {
			fmt.Fprintf(&b, "   • %s: %d usuarios\n", pc.Program, pc.Count)
		}
		b.WriteString("\n")
	}
	if stats.Newest != nil {
		fmt.Fprintf(&b, "🆕 Usuario más reciente: %s (%s)\n",
			stats.Newest.Username, stats.Newest.CreatedAt.Format(dateLayout))
	}
	return b.String()
}
