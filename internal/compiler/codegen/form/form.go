// Package form lowers a merged set of FormDeclaration nodes into a
// declarative form controller: per-field value/error/touched signal
// triples, a validate_<field> function per spec.md §4.5's validator list,
// a field accessor object, group/array/step controllers, and async
// (debounced, stale-response-discarding) validation effects. Grounded on
// the teacher's codegen texture (plain strings.Builder assembly, one
// function per concern — same shape as codegen/cli and codegen/security,
// neither of which the teacher has a direct analogue for either).
package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
	"github.com/tovalang/tova/internal/compiler/lower"
	"github.com/tovalang/tova/internal/compiler/sourcemap"
	"github.com/tovalang/tova/internal/compiler/util"
)

// Result holds everything Generate produced for a directory's forms.
type Result struct {
	Body  string
	Usage *lower.Usage
	SM    *sourcemap.Builder
}

// knownValidators is consulted to warn on an unrecognized validator name
// (spec.md §7: "unknown form validator" is a warning, not a fatal error).
var knownValidators = map[string]bool{
	"required": true, "minLength": true, "maxLength": true, "min": true,
	"max": true, "pattern": true, "email": true, "matches": true, "validate": true,
}

// Generate lowers every merged FormDeclaration into one createXxxForm
// factory function per form. types is the directory's data-block type
// index, consulted when a form declares "form name: TypeName" to inherit
// that type's per-field validators (spec.md §4.5 "Full-stack validator
// reuse").
func Generate(forms []*ast.FormDeclaration, types map[string]*ast.TypeDeclaration, bag *diag.Bag, outFile, sourceFile string) *Result {
	l := lower.New(lower.BaseTarget{}, bag, outFile, sourceFile)
	for _, f := range forms {
		lowerForm(l, f, types, bag)
		l.EmitRaw("")
	}
	return &Result{Body: l.Output(), Usage: l.Usage, SM: l.SM}
}

func lowerForm(l *lower.Lowerer, f *ast.FormDeclaration, types map[string]*ast.TypeDeclaration, bag *diag.Bag) {
	factoryName := "create" + util.ToPascalCase(f.Name) + "Form"
	l.EmitRaw(fmt.Sprintf("export function %s() {", factoryName))

	inherited := typeFieldValidators(f.Type, types)
	if f.Type != "" && inherited == nil {
		bag.Warnf(diag.Position{}, "codegen/form", "form %q declares unknown type %q", f.Name, f.Type)
	}

	allFieldNames := map[string]bool{}
	fieldAccessors := map[string]string{} // flat field name -> accessor var name
	for _, field := range f.Fields {
		mergeInheritedValidators(field, inherited[field.Name])
		emitFieldTriple(l, field, "", nil)
		allFieldNames[field.Name] = true
		fieldAccessors[field.Name] = accessorVar(field.Name)
	}
	for _, g := range f.Groups {
		for _, field := range g.Fields {
			emitFieldTriple(l, field, g.Name+"_", g.Condition)
			allFieldNames[g.Name+"."+field.Name] = true
			fieldAccessors[g.Name+"."+field.Name] = accessorVar(g.Name + "_" + field.Name)
		}
	}
	for _, arr := range f.Arrays {
		emitArray(l, arr)
	}

	emitCrossFieldEffects(l, f.Fields, "")
	for _, g := range f.Groups {
		emitCrossFieldEffects(l, g.Fields, g.Name+"_")
	}

	if len(f.Steps) > 0 {
		emitSteps(l, f.Steps, fieldAccessors, bag)
	}

	l.EmitRaw("  return {")
	for _, field := range f.Fields {
		l.EmitRaw(fmt.Sprintf("    %s: %sField,", field.Name, accessorVar(field.Name)))
	}
	for _, g := range f.Groups {
		l.EmitRaw(fmt.Sprintf("    %s: {", g.Name))
		for _, field := range g.Fields {
			l.EmitRaw(fmt.Sprintf("      %s: %sField,", field.Name, accessorVar(g.Name+"_"+field.Name)))
		}
		l.EmitRaw("    },")
	}
	for _, arr := range f.Arrays {
		l.EmitRaw(fmt.Sprintf("    %s: %s,", arr.Name, arr.Name))
	}
	if len(f.Steps) > 0 {
		l.EmitRaw("    currentStep, canNext, canPrev, progress, nextStep, prevStep,")
	}
	l.EmitRaw("    reset() {")
	for _, field := range f.Fields {
		l.EmitRaw(fmt.Sprintf("      %sField.reset();", accessorVar(field.Name)))
	}
	for _, g := range f.Groups {
		for _, field := range g.Fields {
			l.EmitRaw(fmt.Sprintf("      %sField.reset();", accessorVar(g.Name+"_"+field.Name)))
		}
	}
	l.EmitRaw("    },")
	l.EmitRaw("    validateAll() {")
	l.EmitRaw("      let ok = true;")
	for _, field := range f.Fields {
		l.EmitRaw(fmt.Sprintf("      if (!%sField.validate()) ok = false;", accessorVar(field.Name)))
	}
	for _, g := range f.Groups {
		cond := "true"
		if g.Condition != nil {
			cond = l.LowerExpr(g.Condition)
		}
		l.EmitRaw(fmt.Sprintf("      if (%s) {", cond))
		for _, field := range g.Fields {
			l.EmitRaw(fmt.Sprintf("        if (!%sField.validate()) ok = false;", accessorVar(g.Name+"_"+field.Name)))
		}
		l.EmitRaw("      }")
	}
	l.EmitRaw("      return ok;")
	l.EmitRaw("    },")
	l.EmitRaw("  };")
	l.EmitRaw("}")

	for stepIdx, step := range f.Steps {
		for _, name := range step.FieldNames {
			if !allFieldNames[name] {
				bag.Warnf(diag.Position{}, "codegen/form", "form %q step %d references unknown field %q", f.Name, stepIdx, name)
			}
		}
	}
	for _, field := range f.Fields {
		for _, v := range field.Validators {
			if !knownValidators[v.Name] {
				bag.Warnf(diag.Position{}, "codegen/form", "form %q field %q uses unknown validator %q", f.Name, field.Name, v.Name)
			}
		}
	}
}

func accessorVar(name string) string { return util.ToCamelCase(name) }

// typeFieldValidators resolves a "form name: TypeName" declaration to its
// named type's per-field validators. Only a struct-shaped type (a single
// variant) has fields a form can inherit from; a variant sum has no fixed
// field set to bind form fields to. Returns nil if typeName is empty or
// unresolvable.
func typeFieldValidators(typeName string, types map[string]*ast.TypeDeclaration) map[string][]*ast.Validator {
	if typeName == "" {
		return nil
	}
	decl, ok := types[typeName]
	if !ok || len(decl.Variants) != 1 {
		return nil
	}
	out := map[string][]*ast.Validator{}
	for _, field := range decl.Variants[0].Fields {
		if len(field.Validators) > 0 {
			out[field.Name] = field.Validators
		}
	}
	return out
}

// mergeInheritedValidators appends a type's validators to field, skipping
// any whose name the field already declares explicitly (an explicit
// validator on the form field wins over the inherited one).
func mergeInheritedValidators(field *ast.FormField, inherited []*ast.Validator) {
	if len(inherited) == 0 {
		return
	}
	have := map[string]bool{}
	for _, v := range field.Validators {
		have[v.Name] = true
	}
	for _, v := range inherited {
		if !have[v.Name] {
			field.Validators = append(field.Validators, v)
		}
	}
}

// emitFieldTriple renders the value/error/touched signal triple, the
// validate_<field> function, and the field accessor object for one field.
// prefix namespaces a group field's identifiers; cond is the group's
// optional "when" guard (validation is skipped while it evaluates false).
func emitFieldTriple(l *lower.Lowerer, field *ast.FormField, prefix string, cond ast.Expression) {
	name := prefix + field.Name
	camel := util.ToCamelCase(name)
	setter := "set" + util.ToPascalCase(camel)
	errSetter := "set" + util.ToPascalCase(camel) + "Error"
	touchedSetter := "set" + util.ToPascalCase(camel) + "Touched"

	initial := "undefined"
	if field.InitialVal != nil {
		initial = l.LowerExpr(field.InitialVal)
	}

	l.EmitRaw(fmt.Sprintf("  const %sInitial = %s;", camel, initial))
	l.EmitRaw(fmt.Sprintf("  const [%s, %s] = createSignal(%sInitial);", camel, setter, camel))
	l.EmitRaw(fmt.Sprintf("  const [%sError, %s] = createSignal(null);", camel, errSetter))
	l.EmitRaw(fmt.Sprintf("  const [%sTouched, %s] = createSignal(false);", camel, touchedSetter))

	emitValidateFn(l, field, camel, prefix)

	guard := ""
	if cond != nil {
		guard = fmt.Sprintf("!(%s) ? null : ", l.LowerExpr(cond))
	}

	l.EmitRaw(fmt.Sprintf("  const %sField = {", camel))
	l.EmitRaw(fmt.Sprintf("    get value() { return %s(); },", camel))
	l.EmitRaw(fmt.Sprintf("    get error() { return %sError(); },", camel))
	l.EmitRaw(fmt.Sprintf("    get touched() { return %sTouched(); },", camel))
	l.EmitRaw(fmt.Sprintf("    set(v) { %s(v); if (%sTouched()) %s(%svalidate_%s(v)); },", setter, camel, errSetter, guard, camel))
	l.EmitRaw(fmt.Sprintf("    blur() { %s(true); %s(%svalidate_%s(%s())); },", touchedSetter, errSetter, guard, camel, camel))
	l.EmitRaw(fmt.Sprintf("    validate() { const __e = %svalidate_%s(%s()); %s(__e); return __e === null; },", guard, camel, camel, errSetter))
	l.EmitRaw(fmt.Sprintf("    reset() { %s(%sInitial); %s(null); %s(false); },", setter, camel, errSetter, touchedSetter))
	l.EmitRaw("  };")

	if field.DebounceMS > 0 {
		emitAsyncValidation(l, field, camel)
	}
}

// emitValidateFn renders validate_<field>(value): runs every declared
// validator in order, returning the first failure message or null.
func emitValidateFn(l *lower.Lowerer, field *ast.FormField, camel, prefix string) {
	l.EmitRaw(fmt.Sprintf("  function validate_%s(value) {", camel))
	for _, v := range field.Validators {
		if line := validatorCheck(v, prefix); line != "" {
			l.EmitRaw("    " + line)
		}
	}
	l.EmitRaw("    return null;")
	l.EmitRaw("  }")
}

// validatorCheck renders one failing-check JS statement for a single
// validator rule (spec.md §4.5's list: required, minLength, maxLength,
// min, max, pattern, email, matches, validate(fn)).
func validatorCheck(v *ast.Validator, prefix string) string {
	arg := func(i int) string {
		if i < len(v.Args) {
			return v.Args[i]
		}
		return ""
	}
	switch v.Name {
	case "required":
		return `if (value === "" || value === null || value === undefined) return "This field is required";`
	case "minLength":
		return fmt.Sprintf(`if (String(value).length < %s) return "Must be at least %s characters";`, arg(0), arg(0))
	case "maxLength":
		return fmt.Sprintf(`if (String(value).length > %s) return "Must be at most %s characters";`, arg(0), arg(0))
	case "min":
		return fmt.Sprintf(`if (Number(value) < %s) return "Must be at least %s";`, arg(0), arg(0))
	case "max":
		return fmt.Sprintf(`if (Number(value) > %s) return "Must be at most %s";`, arg(0), arg(0))
	case "pattern":
		return fmt.Sprintf(`if (!/%s/.test(String(value))) return "Invalid format";`, arg(0))
	case "email":
		return `if (!/^[^\s@]+@[^\s@]+\.[^\s@]+$/.test(String(value))) return "Invalid email address";`
	case "matches":
		other := util.ToCamelCase(prefix + arg(0))
		return fmt.Sprintf(`if (value !== %s()) return "Must match %s";`, other, arg(0))
	case "validate":
		return fmt.Sprintf(`{ const __r = (%s)(value); if (__r) return __r; }`, arg(0))
	default:
		return fmt.Sprintf("// unknown validator: %s", v.Name)
	}
}

// emitCrossFieldEffects installs an effect on every field a "matches"
// validator depends on, so the dependent field re-validates whenever its
// source field changes (spec.md §4.5 "Cross-field validators").
func emitCrossFieldEffects(l *lower.Lowerer, fields []*ast.FormField, prefix string) {
	for _, field := range fields {
		for _, v := range field.Validators {
			if v.Name != "matches" || len(v.Args) == 0 {
				continue
			}
			source := util.ToCamelCase(prefix + v.Args[0])
			dependent := accessorVar(prefix + field.Name)
			l.EmitRaw(fmt.Sprintf("  createEffect(() => { %s(); if (%sField.touched) %sField.validate(); });", source, dependent, dependent))
		}
	}
}

// emitAsyncValidation wraps field's async validator in a debounced effect
// that increments a version counter before each call and only writes the
// result back if the version still matches the latest run (discarding
// stale responses), per spec.md §4.5.
func emitAsyncValidation(l *lower.Lowerer, field *ast.FormField, camel string) {
	errSetter := "set" + util.ToPascalCase(camel) + "Error"
	var asyncExpr string
	for _, v := range field.Validators {
		if v.Name == "validate" && len(v.Args) > 0 {
			asyncExpr = v.Args[0]
		}
	}
	if asyncExpr == "" {
		asyncExpr = "async (v) => null"
	}
	l.EmitRaw(fmt.Sprintf("  let __%sVersion = 0;", camel))
	l.EmitRaw("  createEffect(() => {")
	l.EmitRaw(fmt.Sprintf("    const value = %s();", camel))
	l.EmitRaw(fmt.Sprintf("    const version = ++__%sVersion;", camel))
	l.EmitRaw(fmt.Sprintf("    setTimeout(async () => {"))
	l.EmitRaw(fmt.Sprintf("      if (version !== __%sVersion) return;", camel))
	l.EmitRaw(fmt.Sprintf("      const result = await (%s)(value);", asyncExpr))
	l.EmitRaw(fmt.Sprintf("      if (version !== __%sVersion) return;", camel))
	l.EmitRaw(fmt.Sprintf("      %s(result ?? null);", errSetter))
	l.EmitRaw(fmt.Sprintf("    }, %d);", field.DebounceMS))
	l.EmitRaw("  });")
}

// emitArray renders a repeatable field-set factory: a list signal of
// per-item accessor objects plus add/remove/move controls.
func emitArray(l *lower.Lowerer, arr *ast.FormArray) {
	itemFactory := "__" + util.ToPascalCase(arr.Name) + "Item"
	l.EmitRaw(fmt.Sprintf("  function %s(defaults) {", itemFactory))
	l.EmitRaw("    defaults = defaults ?? {};")
	l.EmitRaw("    return {")
	for _, f := range arr.ItemFields {
		camel := util.ToCamelCase(f.Name)
		l.EmitRaw(fmt.Sprintf("      %s: defaults.%s ?? %s,", camel, camel, lowerArrayDefault(f)))
	}
	l.EmitRaw("    };")
	l.EmitRaw("  }")
	l.EmitRaw(fmt.Sprintf("  const [%s, set%s] = createSignal([]);", arr.Name, util.ToPascalCase(arr.Name)))
	l.EmitRaw(fmt.Sprintf("  %s.add = (defaults) => set%s((prev) => [...prev, %s(defaults)]);", arr.Name, util.ToPascalCase(arr.Name), itemFactory))
	l.EmitRaw(fmt.Sprintf("  %s.remove = (item) => set%s((prev) => prev.filter((x) => x !== item));", arr.Name, util.ToPascalCase(arr.Name)))
	l.EmitRaw(fmt.Sprintf(`  %s.move = (from, to) => set%s((prev) => {
    const next = [...prev];
    const [item] = next.splice(from, 1);
    next.splice(to, 0, item);
    return next;
  });`, arr.Name, util.ToPascalCase(arr.Name)))
}

func lowerArrayDefault(f *ast.FormField) string {
	if f.InitialVal == nil {
		return "undefined"
	}
	if lit, ok := f.InitialVal.(*ast.StringLiteral); ok && len(lit.Parts) == 0 {
		return fmt.Sprintf("%q", lit.Value)
	}
	if lit, ok := f.InitialVal.(*ast.NumberLiteral); ok {
		return lit.Value
	}
	return "undefined"
}

// emitSteps renders the multi-step page controller: currentStep signal,
// canNext/canPrev/progress computeds, nextStep() that advances only while
// canNext() holds (every declared field of the current step validates), and
// prevStep() that steps back without a validity check.
func emitSteps(l *lower.Lowerer, steps []*ast.FormStep, fieldAccessors map[string]string, bag *diag.Bag) {
	l.EmitRaw("  const [currentStep, setCurrentStep] = createSignal(0);")
	l.EmitRaw(fmt.Sprintf("  const __stepFields = %s;", stepFieldTable(steps)))
	l.EmitRaw(fmt.Sprintf("  const __fieldsByName = %s;", fieldsByNameTable(fieldAccessors)))
	l.EmitRaw(fmt.Sprintf("  const __stepCount = %d;", len(steps)))
	l.EmitRaw("  const canPrev = createComputed(() => currentStep() > 0);")
	l.EmitRaw(`  const canNext = createComputed(() => {
    const fields = __stepFields[currentStep()] ?? [];
    return fields.every((name) => { const f = __fieldsByName[name]; return !f || f.validate(); });
  });`)
	l.EmitRaw("  const progress = createComputed(() => (currentStep() + 1) / __stepCount);")
	l.EmitRaw("  function nextStep() { if (canNext() && currentStep() < __stepCount - 1) setCurrentStep((s) => s + 1); }")
	l.EmitRaw("  function prevStep() { if (currentStep() > 0) setCurrentStep((s) => s - 1); }")
}

func fieldsByNameTable(fieldAccessors map[string]string) string {
	if len(fieldAccessors) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(fieldAccessors))
	for n := range fieldAccessors {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%q: %sField", n, fieldAccessors[n])
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func stepFieldTable(steps []*ast.FormStep) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		quoted := make([]string, len(s.FieldNames))
		for j, n := range s.FieldNames {
			quoted[j] = fmt.Sprintf("%q", n)
		}
		parts[i] = "[" + strings.Join(quoted, ", ") + "]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
