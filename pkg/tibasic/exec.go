package tibasic

import (
	"fmt"
	"math"
)

var continueStatus = Status{State: StateContinue}

func (in *Interpreter) exec(stmt Stmt) (Status, error) {
	switch s := stmt.(type) {
	case *LabelStmt:
		in.pc++

	case *GotoStmt:
		if err := in.jump(s.Name, s.Line()); err != nil {
			return Status{}, err
		}

	case *RepeatStmt:
		in.push(in.pc)
		in.pc++

	case *WhileStmt:
		in.push(in.pc)
		if !in.eval(s.Cond).Truthy() {
			in.skip = len(in.blocks)
		}
		in.pc++

	case *ForStmt:
		in.execFor(s)

	case *IfStmt:
		in.execIf(s)

	case *ThenStmt:
		// reached without its If, e.g. by Goto; opens a block for the
		// matching End to close
		in.push(in.pc)
		in.pc++

	case *ElseStmt:
		top, _ := in.pop()
		taken := in.ifTaken[top]
		delete(in.ifTaken, top)
		in.push(in.pc)
		if taken {
			in.skip = len(in.blocks)
		}
		in.pc++

	case *EndStmt:
		return continueStatus, in.execEnd(s)

	case *DispStmt:
		for _, a := range s.Args {
			in.screen.Display(in.eval(a))
		}
		in.pc++

	case *OutputStmt:
		row := int(math.Round(in.eval(s.Row).Num()))
		col := int(math.Round(in.eval(s.Col).Num()))
		in.screen.Output(row, col, in.eval(s.Value))
		in.pc++

	case *ClrHomeStmt:
		in.screen.Clear()
		in.pc++

	case *PauseStmt:
		if s.Value != nil {
			in.screen.Display(in.eval(s.Value))
		}
		in.pc++
		return Status{State: StatePaused}, nil

	case *MenuStmt:
		options := make([]string, len(s.Options))
		for i, o := range s.Options {
			options[i] = in.eval(o.Text).String()
		}
		in.menu.SetTitleAndOptions(in.eval(s.Title).String(), options)
		// pc stays on the Menu; the next Step resolves the selection
		in.pendingMenu = s
		return Status{State: StateAwaitingMenuSelection}, nil

	case *InputStmt:
		prompt := "?"
		if s.Prompt != nil {
			prompt = in.eval(s.Prompt).String()
		}
		in.awaitInput(prompt, s.Var)
		in.pc++
		return Status{State: StateAwaitingInput}, nil

	case *PromptStmt:
		name := s.Vars[in.promptIdx]
		in.awaitInput(name+"=?", name)
		in.promptIdx++
		if in.promptIdx == len(s.Vars) {
			in.promptIdx = 0
			in.pc++
		}
		return Status{State: StateAwaitingInput}, nil

	case *ExprStmt:
		in.vars[AnsName] = in.eval(s.X)
		in.pc++

	case *PrgmStmt:
		return Status{}, runtimeError(ErrUnsupported, s.Line(), "Prgm "+s.Name)

	default:
		return Status{}, runtimeError(ErrUnexpectedNode, stmt.Line(), fmt.Sprintf("%T", stmt))
	}
	return continueStatus, nil
}

func (in *Interpreter) awaitInput(prompt, name string) {
	in.screen.Display(String(prompt))
	in.resolve = func(raw string) {
		in.vars[name] = ParseInput(raw)
	}
}

// forContinues reports whether the loop variable is still within bounds
// for the direction of step.
func (in *Interpreter) forContinues(s *ForStmt) bool {
	v := in.lookup(s.Var).Num()
	end := in.eval(s.End).Num()
	if in.eval(s.Step).Num() < 0 {
		return v >= end
	}
	return v <= end
}

func (in *Interpreter) execFor(s *ForStmt) {
	if !in.forInit[in.pc] {
		in.vars[s.Var] = Number(in.eval(s.Start).Num())
		in.forInit[in.pc] = true
	}
	in.push(in.pc)
	if !in.forContinues(s) {
		in.skip = len(in.blocks)
	}
	in.pc++
}

func (in *Interpreter) execIf(s *IfStmt) {
	taken := in.eval(s.Cond).Truthy()
	next := in.pc + 1
	if next < len(in.prog.Stmts) {
		if _, ok := in.prog.Stmts[next].(*ThenStmt); ok {
			in.push(in.pc)
			in.ifTaken[in.pc] = taken
			in.pc = next + 1
			if !taken {
				in.skip = len(in.blocks)
			}
			return
		}
	}
	if taken {
		in.pc++
	} else {
		in.pc += 2
	}
}

func (in *Interpreter) execEnd(s *EndStmt) error {
	idx, ok := in.pop()
	if !ok {
		return runtimeError(ErrUnbalancedEnd, s.Line(), "")
	}
	switch head := in.prog.Stmts[idx].(type) {
	case *RepeatStmt:
		if in.eval(head.Cond).Truthy() {
			in.pc++
		} else {
			in.pc = idx
		}
	case *WhileStmt:
		in.pc = idx
	case *ForStmt:
		if in.forContinues(head) {
			step := in.eval(head.Step).Num()
			in.vars[head.Var] = Number(in.lookup(head.Var).Num() + step)
			in.pc = idx
		} else {
			delete(in.forInit, idx)
			in.pc++
		}
	default:
		delete(in.ifTaken, idx)
		in.pc++
	}
	return nil
}
